package client_test

import (
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/luma/courage/client"
)

type recorder struct {
	mu       sync.Mutex
	opens    int
	closes   int
	messages [][]byte
	errs     []error
}

func (r *recorder) attach(m *client.Manager) {
	m.OnOpen(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.opens++
	})

	m.OnClose(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.closes++
	})

	m.OnMessage(func(data []byte) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.messages = append(r.messages, data)
	})

	m.OnError(func(err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.errs = append(r.errs, err)
	})
}

func (r *recorder) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

func (r *recorder) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

func (r *recorder) Messages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.messages...)
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

var _ = Describe("Manager", func() {
	var (
		dialer  *fakeDialer
		manager *client.Manager
		rec     *recorder
		metrics *client.Metrics
	)

	BeforeEach(func() {
		dialer = &fakeDialer{}
		rec = &recorder{}
		metrics = client.NewMetrics(nil)
		manager = client.NewManager(client.ManagerOptions{
			URL:            "ws://example.com/",
			Dialer:         dialer,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     40 * time.Millisecond,
			Metrics:        metrics,
		})
		rec.attach(manager)
	})

	AfterEach(func() {
		Expect(manager.Close()).To(Succeed())
	})

	It("starts idle and does not dial until started", func() {
		Expect(manager.State()).To(Equal(client.StateIdle))
		Consistently(dialer.Dials, 50*time.Millisecond).Should(Equal(0))
	})

	It("only starts once", func() {
		manager.Start()
		manager.Start()
		manager.Start()

		Eventually(rec.Opens).Should(Equal(1))
		Consistently(dialer.Dials, 50*time.Millisecond).Should(Equal(1))
	})

	It("refuses to send while not open", func() {
		err := manager.Send([]byte{0x13, 0x00})
		Expect(errors.Is(err, client.ErrNotConnected)).To(BeTrue())
	})

	It("opens, sends and forwards inbound messages verbatim", func() {
		manager.Start()
		Eventually(manager.Connected).Should(BeTrue())
		Expect(rec.Opens()).To(Equal(1))

		Expect(manager.Send([]byte{0x13, 0x00})).To(Succeed())
		Expect(dialer.Conn().Written()).To(Equal([][]byte{{0x13, 0x00}}))

		dialer.Conn().Push([]byte{0x12, 0xAA})
		dialer.Conn().Push([]byte{0x99})
		Eventually(rec.Messages).Should(Equal([][]byte{{0x12, 0xAA}, {0x99}}))
	})

	It("reconnects after the connection is lost", func() {
		manager.Start()
		Eventually(rec.Opens).Should(Equal(1))

		first := dialer.Conn()
		Expect(first.Close()).To(Succeed())

		Eventually(rec.Opens).Should(Equal(2))
		Expect(rec.Closes()).To(Equal(1))
		Expect(rec.Errors()).NotTo(BeEmpty())
		Expect(dialer.Conn()).NotTo(BeIdenticalTo(first))
		Expect(manager.State()).To(Equal(client.StateOpen))

		Expect(testutil.ToFloat64(metrics.ConnectionsOpen)).To(Equal(2.0))
		Expect(testutil.ToFloat64(metrics.ConnectionsLost)).To(Equal(1.0))
	})

	It("keeps retrying with doubling delays while the service is down", func() {
		dialer.SetRefuse(true)
		manager.Start()

		Eventually(dialer.Dials, 2*time.Second).Should(BeNumerically(">=", 5))
		Expect(manager.Connected()).To(BeFalse())
		Expect(rec.Opens()).To(Equal(0))
		Expect(errors.Is(rec.Errors()[0], errDialRefused)).To(BeTrue())

		times := dialer.DialTimes()
		minimum := []time.Duration{10, 20, 40, 40}
		for i, d := range minimum {
			Expect(times[i+1].Sub(times[i])).To(BeNumerically(">=", d*time.Millisecond))
		}

		dialer.SetRefuse(false)
		Eventually(manager.Connected).Should(BeTrue())
	})

	It("resets the backoff after a successful open", func() {
		slow := &fakeDialer{}
		slow.SetRefuse(true)

		m := client.NewManager(client.ManagerOptions{
			Dialer:         slow,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
		})
		defer m.Close()

		// Six failures push the next delay to 640ms
		m.Start()
		Eventually(slow.Dials, 3*time.Second).Should(Equal(6))
		slow.SetRefuse(false)
		Eventually(m.Connected, 3*time.Second).Should(BeTrue())

		dropped := time.Now()
		Expect(slow.Conn().Close()).To(Succeed())

		Eventually(slow.Dials).Should(Equal(8))
		Expect(slow.DialTimes()[7].Sub(dropped)).To(BeNumerically("<", 300*time.Millisecond))
	})

	It("stops reconnecting once closed", func() {
		manager.Start()
		Eventually(manager.Connected).Should(BeTrue())

		Expect(manager.Close()).To(Succeed())
		Expect(manager.Connected()).To(BeFalse())

		dials := dialer.Dials()
		Consistently(dialer.Dials, 100*time.Millisecond).Should(Equal(dials))

		err := manager.Send([]byte{0x13, 0x00})
		Expect(errors.Is(err, client.ErrNotConnected)).To(BeTrue())
	})
})
