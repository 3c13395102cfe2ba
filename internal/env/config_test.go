package env_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/courage/internal/env"
)

var _ = Describe("env", func() {
	Describe("LoadConfig()", func() {
		var cleanups []func()

		setenv := func(key, value string) {
			previous, had := os.LookupEnv(key)
			Expect(os.Setenv(key, value)).To(Succeed())

			cleanups = append(cleanups, func() {
				if had {
					os.Setenv(key, previous)
				} else {
					os.Unsetenv(key)
				}
			})
		}

		AfterEach(func() {
			for _, cleanup := range cleanups {
				cleanup()
			}
			cleanups = nil
		})

		It("applies defaults", func() {
			conf, err := env.LoadConfig(context.Background())
			Expect(err).To(Succeed())

			Expect(conf.StateFile).To(Equal(".courage.json"))
			Expect(conf.InitialBackoff).To(Equal(100 * time.Millisecond))
			Expect(conf.MaxBackoff).To(Equal(5 * time.Minute))
			Expect(conf.PingInterval).To(Equal(30 * time.Second))
			Expect(conf.LogLevel).To(Equal("info"))
		})

		It("reads values from the environment", func() {
			setenv("COURAGE_DSN", "a:b@localhost:9090/928308cd-eff8-4ef6-a154-f8268ec663d5")
			setenv("COURAGE_MAX_BACKOFF", "2s")
			setenv("COURAGE_SECURE", "true")

			conf, err := env.LoadConfig(context.Background())
			Expect(err).To(Succeed())

			Expect(conf.DSN).To(Equal("a:b@localhost:9090/928308cd-eff8-4ef6-a154-f8268ec663d5"))
			Expect(conf.MaxBackoff).To(Equal(2 * time.Second))
			Expect(conf.Secure).To(BeTrue())
		})

		It("fails on malformed durations", func() {
			setenv("COURAGE_INITIAL_BACKOFF", "soon")

			_, err := env.LoadConfig(context.Background())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("MakeLogger()", func() {
		It("builds a logger at the requested level", func() {
			log, err := env.MakeLogger("debug")
			Expect(err).To(Succeed())
			Expect(log.Core().Enabled(-1)).To(BeTrue())
		})

		It("rejects unknown levels", func() {
			_, err := env.MakeLogger("loud")
			Expect(err).To(HaveOccurred())
		})
	})
})
