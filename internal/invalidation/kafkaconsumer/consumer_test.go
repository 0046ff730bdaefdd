package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/tilemesh/terrabuild/internal/blacklist"
	"github.com/tilemesh/terrabuild/internal/cache/keys"
	"github.com/tilemesh/terrabuild/internal/invalidation"
	"github.com/tilemesh/terrabuild/internal/layer"
	"github.com/tilemesh/terrabuild/internal/source"
	"github.com/tilemesh/terrabuild/internal/tile"
)

type fakeCache struct {
	failFirst atomic.Bool
	mu        sync.Mutex
	seenDel   []string
	purged    []string
}

func (f *fakeCache) Get(context.Context, string) ([]byte, bool, error)       { return nil, false, nil }
func (f *fakeCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (f *fakeCache) Has(context.Context, string) (bool, error)               { return false, nil }
func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	f.seenDel = append(f.seenDel, keys...)
	f.mu.Unlock()
	if f.failFirst.Load() {
		f.failFirst.Store(false)
		return errors.New("boom")
	}
	return nil
}

func (f *fakeCache) DelByPrefix(_ context.Context, prefix string) (int, error) {
	f.mu.Lock()
	f.purged = append(f.purged, prefix)
	f.mu.Unlock()
	return 10, nil
}

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "terrain-invalidation" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventBytes(x1 float64) []byte {
	ev := invalidation.Event{
		Version: 1, Op: invalidation.OpUpdate, Layer: "world-elevation", TS: time.Now().UTC(),
		BBox:     &invalidation.BBox{X1: x1, Y1: 55, X2: x1 + 0.5, Y2: 55.5, SRID: "EPSG:4326"},
		MinLevel: 6, MaxLevel: 8,
	}
	b, _ := json.Marshal(ev)
	return b
}

func newConsumerForTest(fc *fakeCache, layers ...*layer.Layer) *Consumer {
	cfg := Config{Brokers: []string{"x"}, Topic: "terrain-invalidation", GroupID: "g"}
	return New(cfg, nil, fc, tile.ProfileGlobalMercator, layers)
}

func TestSinglePartition_OrderAndCommitAfterWork(t *testing.T) {
	fc := &fakeCache{}
	c := newConsumerForTest(fc)

	g := &groupHandler{process: c.ProcessOne}
	ctx := t.Context()
	s := &sess{ctx: ctx}
	ch := make(chan *sarama.ConsumerMessage, 2)
	cl := &claim{part: 0, msgs: ch}

	ch <- &sarama.ConsumerMessage{Topic: "terrain-invalidation", Partition: 0, Offset: 10, Value: eventBytes(11)}
	ch <- &sarama.ConsumerMessage{Topic: "terrain-invalidation", Partition: 0, Offset: 11, Value: eventBytes(13)}
	close(ch)

	if err := g.ConsumeClaim(s, cl); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}

	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
	if len(fc.seenDel) == 0 {
		t.Fatalf("expected cache deletes")
	}
}

func TestFanout_DeletesTheCoveredTileKeys(t *testing.T) {
	fc := &fakeCache{}
	bl := blacklist.New(16)
	l := &layer.Layer{Name: "world-elevation", Enabled: true, MaxLevel: layer.UnboundedLevel, Blacklist: bl}
	c := newConsumerForTest(fc, l)

	k := tile.NewKey(7, 10, 20, tile.ProfileGlobalMercator)
	bl.Add(keys.Key("world-elevation", source.KindElevation, k))

	ev := invalidation.Event{
		Version: 1, Op: invalidation.OpUpdate, Layer: "world-elevation", TS: time.Now().UTC(),
		BBox:     &invalidation.BBox{X1: 11, Y1: 55, X2: 11.1, Y2: 55.1, SRID: "EPSG:4326"},
		MinLevel: 6, MaxLevel: 6,
	}
	body, _ := json.Marshal(ev)
	msg := &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 1, Value: body}
	if err := c.ProcessOne(context.Background(), msg); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	// Each covered tile is deleted under both data kinds.
	want := map[string]bool{}
	for _, tk := range tile.KeysForExtent(ev.BBox.Extent(), tile.ProfileGlobalMercator, 6) {
		want[keys.Key("world-elevation", source.KindImage, tk)] = false
		want[keys.Key("world-elevation", source.KindElevation, tk)] = false
	}
	if len(want) == 0 {
		t.Fatalf("test bbox covers no tiles")
	}
	for _, dk := range fc.seenDel {
		if _, ok := want[dk]; !ok {
			t.Fatalf("unexpected delete %s", dk)
		}
		want[dk] = true
	}
	for dk, hit := range want {
		if !hit {
			t.Fatalf("expected delete of %s", dk)
		}
	}

	// The event also clears the layer's blacklist so tiles get retried.
	if bl.Len() != 0 {
		t.Fatalf("blacklist not cleared, len=%d", bl.Len())
	}
}

func TestRetry_CommitOnceAfterSuccess(t *testing.T) {
	fc := &fakeCache{}
	fc.failFirst.Store(true)
	c := newConsumerForTest(fc)
	ctx := context.Background()

	msg := &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 5, Value: eventBytes(11)}
	if err := c.ProcessOne(ctx, msg); err == nil {
		t.Fatalf("expected error on first attempt")
	}

	s := &sess{ctx: ctx}
	g := &groupHandler{process: c.ProcessOne}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- msg
	close(ch)
	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim second attempt: %v", err)
	}
	if len(s.marked) != 1 || s.marked[0] != 5 {
		t.Fatalf("offset was not marked after success; marked=%v", s.marked)
	}
}

func TestDuplicate_ProcessedOnce(t *testing.T) {
	fc := &fakeCache{}
	c := newConsumerForTest(fc)
	ctx := context.Background()

	msg := &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 1, Value: eventBytes(11)}
	if err := c.ProcessOne(ctx, msg); err != nil {
		t.Fatalf("first ProcessOne: %v", err)
	}
	deletes := len(fc.seenDel)

	redelivered := &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 2, Value: eventBytes(11)}
	if err := c.ProcessOne(ctx, redelivered); err != nil {
		t.Fatalf("redelivered ProcessOne: %v", err)
	}
	if len(fc.seenDel) != deletes {
		t.Fatalf("duplicate event deleted keys again")
	}
}

func TestPoisonMessage_SkippedWithoutError(t *testing.T) {
	fc := &fakeCache{}
	c := newConsumerForTest(fc)
	ctx := context.Background()

	bad := &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 1, Value: []byte("{not json")}
	if err := c.ProcessOne(ctx, bad); err != nil {
		t.Fatalf("poison message must be skipped, got %v", err)
	}

	invalid, _ := json.Marshal(invalidation.Event{Version: 99})
	if err := c.ProcessOne(ctx, &sarama.ConsumerMessage{Topic: "t", Offset: 2, Value: invalid}); err != nil {
		t.Fatalf("invalid event must be skipped, got %v", err)
	}
	if len(fc.seenDel) != 0 {
		t.Fatalf("poison messages caused deletes: %v", fc.seenDel)
	}
}

func TestPurge_UsesPrefixDelete(t *testing.T) {
	fc := &fakeCache{}
	c := newConsumerForTest(fc)

	ev := invalidation.Event{Version: 1, Op: invalidation.OpPurge, Layer: "world-elevation", TS: time.Now().UTC()}
	body, _ := json.Marshal(ev)
	if err := c.ProcessOne(context.Background(), &sarama.ConsumerMessage{Topic: "t", Offset: 1, Value: body}); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if len(fc.purged) != 2 {
		t.Fatalf("purged prefixes = %v, want one per data kind", fc.purged)
	}
	if fc.purged[0] != keys.Prefix("world-elevation", source.KindImage) {
		t.Fatalf("purge prefix = %q", fc.purged[0])
	}
}

func TestMultiPartition_Parallel_NoCrossOrdering(t *testing.T) {
	fc := &fakeCache{}
	c := newConsumerForTest(fc)
	g := &groupHandler{process: c.ProcessOne}

	ctx := t.Context()
	s := &sess{ctx: ctx}

	p0 := make(chan *sarama.ConsumerMessage, 2)
	p1 := make(chan *sarama.ConsumerMessage, 2)
	p0 <- &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 1, Value: eventBytes(11)}
	p0 <- &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 2, Value: eventBytes(13)}
	p1 <- &sarama.ConsumerMessage{Topic: "t", Partition: 1, Offset: 1, Value: eventBytes(15)}
	p1 <- &sarama.ConsumerMessage{Topic: "t", Partition: 1, Offset: 2, Value: eventBytes(17)}
	close(p0)
	close(p1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 0, msgs: p0}) }()
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 1, msgs: p1}) }()
	wg.Wait()

	if len(s.marked) != 4 {
		t.Fatalf("expected 4 marks total; got %v", s.marked)
	}
}
