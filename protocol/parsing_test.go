package protocol_test

import (
	"errors"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/courage/protocol"
)

var _ = Describe("Reader", func() {
	id := uuid.MustParse("28955ba1-fc5d-4553-9d1b-c751d5110c82")

	It("decodes every field type written by a Writer", func() {
		w := protocol.NewWriter()
		Expect(w.WriteHeader(3, 9)).To(Succeed())
		w.WriteUint8(42)
		w.WriteIdentifier(id)
		Expect(w.WriteBlob([]byte{0, 1, 2})).To(Succeed())
		Expect(w.WriteString("channel")).To(Succeed())

		r := protocol.NewReader(w.Bytes())

		header, err := r.ReadHeader()
		Expect(err).To(Succeed())
		Expect(header).To(Equal(protocol.Header{Protocol: 3, Type: 9}))

		Expect(r.ReadUint8()).To(Equal(uint8(42)))
		Expect(r.ReadIdentifier()).To(Equal(id))
		Expect(r.ReadBlob()).To(Equal([]byte{0, 1, 2}))
		Expect(r.ReadString()).To(Equal("channel"))
		Expect(r.Remaining()).To(Equal(0))
	})

	It("recovers every protocol id and message type from the header", func() {
		for p := 0; p <= 15; p++ {
			for t := 0; t <= 15; t++ {
				r := protocol.NewReader([]byte{byte(p<<4 | t)})
				header, err := r.ReadHeader()
				Expect(err).To(Succeed())
				Expect(header.Protocol).To(Equal(protocol.ProtocolID(p)))
				Expect(header.Type).To(Equal(protocol.MessageType(t)))
			}
		}
	})

	It("returns slices of the original buffer for blobs", func() {
		data := []byte{0x00, 0x02, 'o', 'k'}
		blob, err := protocol.NewReader(data).ReadBlob()
		Expect(err).To(Succeed())

		data[2] = 'O'
		Expect(string(blob)).To(Equal("Ok"))
	})

	Describe("truncated input", func() {
		It("fails to read a header from an empty buffer", func() {
			_, err := protocol.NewReader(nil).ReadHeader()
			Expect(errors.Is(err, protocol.ErrTruncatedMessage)).To(BeTrue())
		})

		It("fails to read a short identifier", func() {
			_, err := protocol.NewReader(make([]byte, 15)).ReadIdentifier()
			Expect(errors.Is(err, protocol.ErrTruncatedMessage)).To(BeTrue())
		})

		It("fails when a blob is shorter than its length prefix", func() {
			_, err := protocol.NewReader([]byte{0x00, 0x05, 'a', 'b'}).ReadBlob()
			Expect(errors.Is(err, protocol.ErrTruncatedMessage)).To(BeTrue())
		})

		It("fails when the length prefix itself is cut off", func() {
			_, err := protocol.NewReader([]byte{0x00}).ReadBlob()
			Expect(errors.Is(err, protocol.ErrTruncatedMessage)).To(BeTrue())
		})

		It("does not advance past the end", func() {
			r := protocol.NewReader([]byte{1})
			_, err := r.ReadIdentifier()
			Expect(err).To(HaveOccurred())
			Expect(r.ReadUint8()).To(Equal(uint8(1)))
		})
	})
})
