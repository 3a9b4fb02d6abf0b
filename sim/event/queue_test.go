package event

import (
	"fmt"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/curvesim/sim/hooking"
	"github.com/sarchlab/curvesim/sim/timing"
	"go.uber.org/mock/gomock"
)

var _ = Describe("EventQueue", func() {
	var (
		queue   *EventQueue
		x       *stepEntity
		handler *delayHandler
	)

	BeforeEach(func() {
		queue = NewEventQueue(nil)
		x = newStepEntity("x", 100)
		queue.AddEntity(x)
		handler = newDelayHandler("delay", Dependency)
	})

	It("should be empty", func() {
		Expect(queue.Len()).To(Equal(0))
		Expect(queue.PeekEarliestTime()).To(Equal(timing.Never))

		_, err := queue.PopEarliest()
		Expect(err).To(MatchError(ErrQueueEmpty))

		_, err = queue.PeekEarliest()
		Expect(err).To(MatchError(ErrQueueEmpty))
	})

	It("should refuse an entity twice", func() {
		Expect(func() { queue.AddEntity(x) }).To(Panic())
	})

	It("should refuse targets that are not added", func() {
		loose := newStepEntity("loose", 1)
		Expect(func() { queue.Create(loose, handler, nil) }).To(Panic())
	})

	It("should pop in time order, breaking ties by hash", func() {
		for i := 0; i < 30; i++ {
			e := newStepEntity(fmt.Sprintf("e%d", i), float64(i%4))
			queue.AddEntity(e)
			evt, _ := queue.Create(e, handler, nil)
			evt.Reschedule(0)
		}

		Expect(queue.Len()).To(Equal(30))
		expected := queue.Events()

		var prev *Event
		for i := 0; queue.Len() > 0; i++ {
			evt, err := queue.PopEarliest()
			Expect(err).NotTo(HaveOccurred())
			Expect(evt).To(BeIdenticalTo(expected[i]))
			Expect(evt.IsQueued()).To(BeFalse())

			if prev != nil {
				Expect(prev.Less(evt)).To(BeTrue())
			}
			prev = evt
		}

		Expect(queue.NumLive()).To(Equal(30))
	})

	It("should peek without popping", func() {
		evt, _ := queue.Create(x, handler, nil)
		evt.Reschedule(0)

		peeked, err := queue.PeekEarliest()

		Expect(err).NotTo(HaveOccurred())
		Expect(peeked).To(BeIdenticalTo(evt))
		Expect(queue.PeekEarliestTime()).To(Equal(timing.VTimeInSec(100)))
		Expect(queue.Len()).To(Equal(1))
	})

	It("should find live events by hash", func() {
		evt, _ := queue.Create(x, handler, nil)

		found, ok := queue.Lookup(evt.Hash())

		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(evt))
		Expect(queue.Contains(evt)).To(BeTrue())
		Expect(queue.Contains(nil)).To(BeFalse())
	})

	It("should panic on a hash collision", func() {
		evt, _ := queue.Create(x, handler, ParamMap{"k": 1})

		Expect(func() {
			queue.mustBeSameEvent(evt, evt.TargetID(), handler, ParamMap{"k": 2})
		}).To(Panic())
	})

	Context("remove", func() {
		It("should remove once", func() {
			evt, _ := queue.Create(x, handler, nil)
			evt.Reschedule(0)

			Expect(queue.Remove(evt)).To(BeTrue())
			Expect(queue.Remove(evt)).To(BeFalse())
			Expect(queue.Len()).To(Equal(0))
			Expect(queue.NumLive()).To(Equal(0))
		})

		It("should forget the pending change of the event", func() {
			evt, _ := queue.Create(x, handler, nil)
			evt.Reschedule(0)
			x.Set(10, 5)
			Expect(queue.NumChanged()).To(Equal(1))

			queue.Remove(evt)

			Expect(queue.NumChanged()).To(Equal(0))
		})

		It("should allow the same event to be created again", func() {
			evt, _ := queue.Create(x, handler, nil)
			queue.Remove(evt)

			again, created := queue.Create(x, handler, nil)

			Expect(created).To(BeTrue())
			Expect(again).NotTo(BeIdenticalTo(evt))
			Expect(again.Hash()).To(Equal(evt.Hash()))
		})
	})

	Context("insert", func() {
		It("should refuse events that were never scheduled", func() {
			evt, _ := queue.Create(x, handler, nil)
			Expect(func() { queue.Insert(evt) }).To(Panic())
		})

		It("should refuse cancelled events", func() {
			evt, _ := queue.Create(x, handler, nil)
			evt.Reschedule(0)
			evt.Cancel(0)

			Expect(func() { queue.Insert(evt) }).To(Panic())
		})

		It("should refuse events of another queue", func() {
			other := NewEventQueue(nil)
			y := newStepEntity("y", 1)
			other.AddEntity(y)
			evt, _ := other.Create(y, handler, nil)
			evt.Reschedule(0)

			Expect(func() { queue.Insert(evt) }).To(Panic())
		})

		It("should put a popped event back", func() {
			evt, _ := queue.Create(x, handler, nil)
			evt.Reschedule(0)
			queue.PopEarliest()

			queue.Insert(evt)
			queue.Insert(evt)

			Expect(queue.Len()).To(Equal(1))
			Expect(evt.IsQueued()).To(BeTrue())
		})
	})

	Context("reschedule", func() {
		var reschedules []RescheduleDetail

		BeforeEach(func() {
			reschedules = nil
			queue.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				if ctx.Pos == HookPosReschedule {
					reschedules = append(reschedules,
						ctx.Detail.(RescheduleDetail))
				}
			}))
		})

		It("should be idempotent", func() {
			evt, _ := queue.Create(x, handler, nil)

			Expect(evt.Reschedule(0)).To(BeTrue())
			Expect(evt.Reschedule(0)).To(BeTrue())

			Expect(queue.Len()).To(Equal(1))
			Expect(reschedules).To(Equal([]RescheduleDetail{
				{Reference: 0, Old: timing.Never, New: 100},
			}))
		})

		It("should park events predicted never to fire", func() {
			x.Set(0, -1)
			evt, _ := queue.Create(x, handler, nil)

			evt.Reschedule(0)

			Expect(evt.Time()).To(Equal(timing.Never))
			Expect(evt.IsQueued()).To(BeFalse())
			Expect(queue.Len()).To(Equal(0))
			Expect(queue.NumLive()).To(Equal(1))

			x.Set(10, 5)
			queue.Reevaluate(10)

			Expect(evt.Time()).To(Equal(timing.VTimeInSec(15)))
			Expect(queue.Len()).To(Equal(1))
		})

		It("should panic on a NaN prediction", func() {
			ctrl := gomock.NewController(GinkgoT())
			mock := NewMockHandler(ctrl)
			mock.EXPECT().ID().Return("nan").AnyTimes()
			mock.EXPECT().Setup(gomock.Any(), gomock.Any())
			mock.EXPECT().
				PredictInvokeTime(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(timing.VTimeInSec(math.NaN()))

			evt, _ := queue.Create(x, mock, nil)

			Expect(func() { evt.Reschedule(0) }).To(Panic())
		})
	})

	Context("reevaluate", func() {
		It("should move an event back in time", func() {
			evt, _ := queue.Create(x, handler, nil)
			evt.Reschedule(0)
			Expect(evt.Time()).To(Equal(timing.VTimeInSec(100)))

			x.Set(50, 20)
			Expect(evt.LastChanged()).To(Equal(timing.VTimeInSec(50)))

			n := queue.Reevaluate(50)

			Expect(n).To(Equal(1))
			Expect(evt.Time()).To(Equal(timing.VTimeInSec(70)))
			Expect(evt.LastChanged()).To(Equal(timing.MinTime))
			Expect(queue.NumChanged()).To(Equal(0))
		})

		It("should reevaluate once for many changes", func() {
			y := newStepEntity("y", 1)
			queue.AddEntity(y)
			handler.extraDeps = []EventEntity{y}

			evt, _ := queue.Create(x, handler, nil)
			evt.Reschedule(0)
			Expect(handler.predictions[evt.Hash()]).To(Equal(1))

			x.Set(50, 20)
			y.Set(40, 2)
			x.Set(30, 10)

			queue.Reevaluate(0)
			queue.Reevaluate(0)

			Expect(handler.predictions[evt.Hash()]).To(Equal(2))
			Expect(evt.Time()).To(Equal(timing.VTimeInSec(40)))
		})

		It("should only consider changes from the given time on", func() {
			evt, _ := queue.Create(x, handler, nil)
			evt.Reschedule(0)
			x.Set(20, 5)

			Expect(queue.Reevaluate(30)).To(Equal(0))
			Expect(queue.NumChanged()).To(Equal(1))

			Expect(queue.Reevaluate(20)).To(Equal(1))
			Expect(evt.Time()).To(Equal(timing.VTimeInSec(25)))
		})

		It("should leave events before the change alone", func() {
			x.Set(0, 10)
			evt, _ := queue.Create(x, handler, nil)
			evt.Reschedule(0)

			x.Set(50, 20)
			n := queue.Reevaluate(50)

			Expect(n).To(Equal(0))
			Expect(evt.Time()).To(Equal(timing.VTimeInSec(10)))
			Expect(handler.predictions[evt.Hash()]).To(Equal(1))
			Expect(queue.NumChanged()).To(Equal(1))
		})

		It("should settle the change once the event has fired", func() {
			x.Set(0, 10)
			evt, _ := queue.Create(x, handler, nil)
			evt.Reschedule(0)

			x.Set(50, 20)
			queue.Reevaluate(50)
			Expect(queue.Settle(evt)).To(BeFalse())

			popped, err := queue.PopEarliest()
			Expect(err).NotTo(HaveOccurred())
			Expect(popped).To(BeIdenticalTo(evt))
			queue.park(evt)

			Expect(queue.Settle(evt)).To(BeTrue())
			Expect(evt.Time()).To(Equal(timing.VTimeInSec(70)))
			Expect(queue.NumChanged()).To(Equal(0))
			Expect(queue.Settle(evt)).To(BeFalse())
		})

		It("should ask the handler exactly once", func() {
			ctrl := gomock.NewController(GinkgoT())
			mock := NewMockHandler(ctrl)
			mock.EXPECT().ID().Return("mock").AnyTimes()
			mock.EXPECT().Type().Return(Dependency).AnyTimes()
			mock.EXPECT().
				Setup(gomock.Any(), gomock.Any()).
				Do(func(evt *Event, _ State) { evt.DependOn(x) })
			mock.EXPECT().
				PredictInvokeTime(timing.VTimeInSec(0), gomock.Any(), gomock.Any()).
				Return(timing.VTimeInSec(100))
			mock.EXPECT().
				PredictInvokeTime(timing.VTimeInSec(20), gomock.Any(), gomock.Any()).
				Return(timing.VTimeInSec(60))

			evt, _ := queue.Create(x, mock, nil)
			evt.Reschedule(0)
			x.Set(40, 1)
			x.Set(20, 2)
			queue.Reevaluate(0)

			Expect(evt.Time()).To(Equal(timing.VTimeInSec(60)))
		})

		It("should fire immediately on a change", func() {
			immediate := newDelayHandler("immediate", DependencyImmediately)
			evt, _ := queue.Create(x, immediate, nil)
			evt.Reschedule(0)
			Expect(evt.Time()).To(Equal(timing.VTimeInSec(100)))

			x.Set(30, 7)
			queue.Reevaluate(30)

			Expect(evt.Time()).To(Equal(timing.VTimeInSec(30)))
			Expect(immediate.predictions[evt.Hash()]).To(Equal(1))
		})

		It("should wake a parked trigger", func() {
			trigger := newDelayHandler("trigger", Trigger)
			evt, _ := queue.Create(x, trigger, nil)
			queue.park(evt)
			Expect(queue.Len()).To(Equal(0))

			x.Set(30, 7)
			queue.Reevaluate(30)

			Expect(evt.Time()).To(Equal(timing.VTimeInSec(30)))
			Expect(queue.Len()).To(Equal(1))
			Expect(trigger.predictions).To(BeEmpty())
		})

		It("should drop stale dependents", func() {
			evt, _ := queue.Create(x, handler, nil)
			x.AddDependent(42)

			x.Set(10, 1)

			Expect(x.Dependents()).To(Equal([]uint64{evt.Hash()}))
		})
	})
})
