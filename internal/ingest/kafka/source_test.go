package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/flowprofiler/flowprofiler/internal/logx"
)

// fakeClaim and fakeSession stand in for the broker-backed
// implementations sarama hands ConsumeClaim in production; sarama
// itself ships no consumer-group mocks, so ConsumeClaim's forwarding
// logic is exercised directly against minimal fakes instead.
type fakeClaim struct {
	ch chan *sarama.ConsumerMessage
}

func (f fakeClaim) Topic() string                            { return "flows" }
func (f fakeClaim) Partition() int32                          { return 0 }
func (f fakeClaim) InitialOffset() int64                      { return 0 }
func (f fakeClaim) HighWaterMarkOffset() int64                { return 0 }
func (f fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return f.ch }

type fakeSession struct {
	ctx context.Context
}

func (s fakeSession) Claims() map[string][]int32                          { return nil }
func (s fakeSession) MemberID() string                                    { return "test-member" }
func (s fakeSession) GenerationID() int32                                 { return 1 }
func (s fakeSession) MarkOffset(string, int32, int64, string)             {}
func (s fakeSession) Commit()                                             {}
func (s fakeSession) ResetOffset(string, int32, int64, string)            {}
func (s fakeSession) MarkMessage(*sarama.ConsumerMessage, string)         {}
func (s fakeSession) Context() context.Context                            { return s.ctx }

func TestConsumeClaimForwardsMessageValues(t *testing.T) {
	src := &Source{Records: make(chan []byte, 4), log: logx.New("test", logx.OFF)}
	claim := fakeClaim{ch: make(chan *sarama.ConsumerMessage, 2)}
	claim.ch <- &sarama.ConsumerMessage{Value: []byte("rec1")}
	claim.ch <- &sarama.ConsumerMessage{Value: []byte("rec2")}
	close(claim.ch)

	done := make(chan error, 1)
	go func() { done <- src.ConsumeClaim(fakeSession{ctx: context.Background()}, claim) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not return")
	}

	var got []string
	close(src.Records)
	for b := range src.Records {
		got = append(got, string(b))
	}
	if len(got) != 2 || got[0] != "rec1" || got[1] != "rec2" {
		t.Fatalf("got %v, want [rec1 rec2]", got)
	}
}

func TestConsumeClaimStopsOnSessionDone(t *testing.T) {
	src := &Source{Records: make(chan []byte), log: logx.New("test", logx.OFF)}
	claim := fakeClaim{ch: make(chan *sarama.ConsumerMessage)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- src.ConsumeClaim(fakeSession{ctx: ctx}, claim) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not return after session context canceled")
	}
}
