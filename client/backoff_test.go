package client_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/courage/client"
)

var _ = Describe("Backoff", func() {
	const (
		initial = 100 * time.Millisecond
		ceiling = 300000 * time.Millisecond
	)

	expected := func(k int) time.Duration {
		d := initial
		for i := 0; i < k; i++ {
			d *= 2
			if d > ceiling {
				return ceiling
			}
		}

		return d
	}

	It("waits the initial interval after the first failure", func() {
		b := client.NewBackoff(initial, ceiling)
		Expect(b.Next()).To(Equal(initial))
		Expect(b.Interval()).To(Equal(2 * initial))
	})

	It("doubles after every failure up to the ceiling", func() {
		b := client.NewBackoff(initial, ceiling)

		for k := 0; k < 30; k++ {
			Expect(b.Interval()).To(Equal(expected(k)), "after %d failures", k)
			Expect(b.Next()).To(Equal(expected(k)))
			Expect(b.Failures()).To(Equal(k + 1))
		}

		Expect(b.Interval()).To(Equal(ceiling))
	})

	It("resets to the initial interval", func() {
		b := client.NewBackoff(initial, ceiling)
		for i := 0; i < 5; i++ {
			b.Next()
		}

		b.Reset()
		Expect(b.Failures()).To(Equal(0))
		Expect(b.Next()).To(Equal(initial))
	})

	It("defaults a missing initial interval", func() {
		b := client.NewBackoff(0, ceiling)
		Expect(b.Next()).To(Equal(client.DefaultInitialBackoff))
	})

	It("never goes above a ceiling below the initial interval", func() {
		b := client.NewBackoff(time.Second, time.Millisecond)
		Expect(b.Next()).To(Equal(time.Second))
		Expect(b.Next()).To(Equal(time.Second))
	})
})
