//go:build integration

package integration

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
	"github.com/eliteGoblin/focusd/site_block/internal/infra"
	"github.com/eliteGoblin/focusd/site_block/internal/policy"
	"github.com/eliteGoblin/focusd/site_block/internal/usecase"
)

// manualClock lets specs move time without sleeping.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingTimers captures Arm calls instead of scheduling real timers;
// specs fire the engine callbacks directly.
type recordingTimers struct {
	mu    sync.Mutex
	armed map[string]time.Duration
}

func newRecordingTimers() *recordingTimers {
	return &recordingTimers{armed: map[string]time.Duration{}}
}

func (t *recordingTimers) Arm(id string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed[id] = d
}

func (t *recordingTimers) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.armed, id)
}

func (t *recordingTimers) ArmedFor(id string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.armed[id]
	return d, ok
}

var _ = Describe("Blocking Engine", func() {
	var (
		dataDir string
		clock   *manualClock
		timers  *recordingTimers
		history *infra.EncryptedHistory
		engine  *usecase.Engine
	)

	// buildEngine opens all infrastructure against dataDir. Calling it a
	// second time with the same directory simulates a daemon restart.
	buildEngine := func() *usecase.Engine {
		store, err := infra.NewFileStateStore(dataDir)
		Expect(err).NotTo(HaveOccurred())

		rules, err := infra.NewFileRuleTable(dataDir)
		Expect(err).NotTo(HaveOccurred())

		key, err := infra.EnsureKey(infra.NewFileKeyProvider(dataDir))
		Expect(err).NotTo(HaveOccurred())

		history, err = infra.NewEncryptedHistory(dataDir, key)
		Expect(err).NotTo(HaveOccurred())

		groups := policy.NewRegistryWithGroups(policy.Group{
			ID:      "social",
			Name:    "Social Media",
			Domains: []string{"facebook.com", "x.com"},
		})

		return usecase.NewEngine(
			store,
			rules,
			history,
			clock,
			timers,
			groups,
			policy.NewQuotes(),
			zap.NewNop(),
		)
	}

	readRules := func() []domain.BlockRule {
		rules, err := infra.NewFileRuleTable(dataDir)
		Expect(err).NotTo(HaveOccurred())
		rs, err := rules.Rules()
		Expect(err).NotTo(HaveOccurred())
		return rs
	}

	BeforeEach(func() {
		dataDir = GinkgoT().TempDir()
		// A Tuesday morning, outside any default schedule window.
		clock = &manualClock{now: time.Date(2024, 6, 11, 9, 0, 0, 0, time.Local)}
		timers = newRecordingTimers()
		engine = buildEngine()
	})

	AfterEach(func() {
		if history != nil {
			Expect(history.Close()).To(Succeed())
		}
	})

	Describe("focus session lifecycle", func() {
		BeforeEach(func() {
			Expect(engine.UpdateBlocklist([]string{"facebook.com"})).To(Succeed())
		})

		It("blocks listed domains only while a session runs", func() {
			decision, err := engine.CheckBlocked("facebook.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked).To(BeFalse())
			Expect(readRules()).To(BeEmpty())

			Expect(engine.StartFocus(25)).To(Succeed())

			decision, err = engine.CheckBlocked("facebook.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked).To(BeTrue())
			Expect(decision.Reason).To(Equal(domain.ReasonFocusSession))
			Expect(readRules()).To(HaveLen(1))

			// Subdomains fall under the same rule.
			decision, err = engine.CheckBlocked("https://m.facebook.com/feed")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked).To(BeTrue())

			clock.Advance(25*time.Minute + time.Second)
			engine.Tick()

			st, err := engine.GetFullState()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Session.Status).To(Equal(domain.StatusBreak))
			Expect(st.TodayStats.SessionsCompleted).To(Equal(1))
			Expect(st.TodayStats.FocusMinutes).To(Equal(25))

			decision, err = engine.CheckBlocked("facebook.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked).To(BeFalse())
			Expect(readRules()).To(BeEmpty())
		})

		It("leaves unlisted domains alone during a session", func() {
			Expect(engine.StartFocus(25)).To(Succeed())

			decision, err := engine.CheckBlocked("wikipedia.org")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked).To(BeFalse())
		})
	})

	Describe("nuclear mode", func() {
		BeforeEach(func() {
			Expect(engine.UpdateBlocklist([]string{"facebook.com"})).To(Succeed())
			Expect(engine.ActivateNuclear(60)).To(Succeed())
		})

		It("blocks without a session and refuses early exits", func() {
			decision, err := engine.CheckBlocked("facebook.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked).To(BeTrue())
			Expect(decision.Reason).To(Equal(domain.ReasonNuclear))

			Expect(engine.StartFocus(25)).To(Succeed())
			Expect(engine.Stop()).To(MatchError(domain.ErrNuclearLocked))

			Expect(engine.UpdateBlocklist([]string{})).To(MatchError(domain.ErrNuclearLocked))
		})

		It("expires lazily on the next read after its end", func() {
			clock.Advance(61 * time.Minute)

			decision, err := engine.CheckBlocked("facebook.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked).To(BeFalse())

			st, err := engine.GetFullState()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.NuclearActive).To(BeFalse())
		})
	})

	Describe("restart recovery", func() {
		BeforeEach(func() {
			Expect(engine.UpdateBlocklist([]string{"facebook.com"})).To(Succeed())
		})

		It("resumes a mid-flight session with recomputed remaining time", func() {
			Expect(engine.StartFocus(25)).To(Succeed())
			clock.Advance(10 * time.Minute)
			Expect(history.Close()).To(Succeed())

			timers = newRecordingTimers()
			engine = buildEngine()
			Expect(engine.Recover()).To(Succeed())

			st, err := engine.GetFullState()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Session.Status).To(Equal(domain.StatusFocus))
			Expect(st.Session.RemainingSeconds).To(Equal(15 * 60))

			_, armed := timers.ArmedFor(usecase.TimerSessionTick)
			Expect(armed).To(BeTrue())
			Expect(readRules()).To(HaveLen(1))
		})

		It("runs a completion missed while the daemon was down", func() {
			Expect(engine.StartFocus(25)).To(Succeed())
			clock.Advance(26 * time.Minute)
			Expect(history.Close()).To(Succeed())

			timers = newRecordingTimers()
			engine = buildEngine()
			Expect(engine.Recover()).To(Succeed())

			st, err := engine.GetFullState()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Session.Status).To(Equal(domain.StatusBreak))
			Expect(st.TodayStats.SessionsCompleted).To(Equal(1))
		})

		It("re-arms nuclear with its remaining window, not the original", func() {
			Expect(engine.ActivateNuclear(60)).To(Succeed())
			clock.Advance(20 * time.Minute)
			Expect(history.Close()).To(Succeed())

			timers = newRecordingTimers()
			engine = buildEngine()
			Expect(engine.Recover()).To(Succeed())

			d, armed := timers.ArmedFor(usecase.TimerNuclear)
			Expect(armed).To(BeTrue())
			Expect(d).To(Equal(40 * time.Minute))
			Expect(readRules()).To(HaveLen(1))
		})
	})

	Describe("override windows", func() {
		BeforeEach(func() {
			Expect(engine.UpdateBlocklist([]string{"facebook.com", "x.com"})).To(Succeed())
			Expect(engine.StartFocus(25)).To(Succeed())
		})

		It("lifts one domain for the window, then restores it", func() {
			Expect(engine.Override("facebook.com")).To(Succeed())

			decision, err := engine.CheckBlocked("facebook.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked).To(BeFalse())

			decision, err = engine.CheckBlocked("x.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked).To(BeTrue())

			st, err := engine.GetFullState()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.TodayStats.Distractions).To(Equal(1))

			clock.Advance(5*time.Minute + time.Second)
			engine.TimerFired("override:facebook.com")

			decision, err = engine.CheckBlocked("facebook.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked).To(BeTrue())
			Expect(readRules()).To(HaveLen(2))
		})

		It("refuses overrides under nuclear mode", func() {
			Expect(engine.ActivateNuclear(60)).To(Succeed())
			Expect(engine.Override("facebook.com")).To(MatchError(domain.ErrNuclearLocked))
		})
	})

	Describe("group toggling", func() {
		It("folds group domains into the effective set", func() {
			Expect(engine.UpdateBlocklist([]string{"reddit.com"})).To(Succeed())
			active, err := engine.ToggleGroup("social")
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(Equal([]string{"social"}))

			Expect(engine.StartFocus(25)).To(Succeed())
			Expect(readRules()).To(HaveLen(3))

			active, err = engine.ToggleGroup("social")
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeEmpty())
			Expect(readRules()).To(HaveLen(1))
		})
	})
})
