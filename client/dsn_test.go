package client_test

import (
	"errors"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/luma/courage/client"
)

var _ = Describe("ParseDSN()", func() {
	It("parses every field", func() {
		dsn, err := client.ParseDSN("sessionpubkey:sessionprivkey@rt.thenewtricks.com:9090/928308cd-eff8-4ef6-a154-f8268ec663d5")
		Expect(err).To(Succeed())

		Expect(dsn.PublicToken).To(Equal("sessionpubkey"))
		Expect(dsn.PrivateToken).To(Equal("sessionprivkey"))
		Expect(dsn.Host).To(Equal("rt.thenewtricks.com"))
		Expect(dsn.Port).To(Equal("9090"))
		Expect(dsn.ProviderID).To(Equal(uuid.MustParse("928308cd-eff8-4ef6-a154-f8268ec663d5")))
	})

	It("is case insensitive", func() {
		dsn, err := client.ParseDSN("PUB:Priv@RT.example.com:1/928308CD-EFF8-4EF6-A154-F8268EC663D5")
		Expect(err).To(Succeed())
		Expect(dsn.ProviderID.String()).To(Equal("928308cd-eff8-4ef6-a154-f8268ec663d5"))
	})

	It("builds the websocket URL", func() {
		dsn, err := client.ParseDSN("a:b@localhost:9090/928308cd-eff8-4ef6-a154-f8268ec663d5")
		Expect(err).To(Succeed())

		Expect(dsn.URL(false)).To(Equal("ws://localhost:9090/"))
		Expect(dsn.URL(true)).To(Equal("wss://localhost:9090/"))
	})

	DescribeTable("rejects malformed DSNs",
		func(dsn string) {
			_, err := client.ParseDSN(dsn)
			Expect(errors.Is(err, client.ErrInvalidDSN)).To(BeTrue())
		},
		Entry("empty", ""),
		Entry("missing credentials", "localhost:9090/928308cd-eff8-4ef6-a154-f8268ec663d5"),
		Entry("missing port", "a:b@localhost/928308cd-eff8-4ef6-a154-f8268ec663d5"),
		Entry("missing provider", "a:b@localhost:9090/"),
		Entry("provider is not an identifier", "a:b@localhost:9090/not-a-uuid"),
	)
})
