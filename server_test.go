package tabstrip

import (
	"context"
	"testing"
	"time"

	"pkt.systems/tabstrip/core"
	"pkt.systems/tabstrip/internal/catalog"
	"pkt.systems/tabstrip/schema"
)

func TestNewRequiresAService(t *testing.T) {
	cfg := ServerConfig{Service: schema.ServiceConfig{Catalog: catalog.Default().Tabs()}}
	if _, err := New(cfg, ServerDeps{}); err == nil {
		t.Fatalf("expected error without enabled services")
	}
	if _, err := New(ServerConfig{}, ServerDeps{}, WithHTTP()); err == nil {
		t.Fatalf("expected error for empty catalog")
	}
}

func TestServerStopClosesService(t *testing.T) {
	service, err := core.NewService(schema.ServiceConfig{Catalog: catalog.Default().Tabs()}, core.ServiceDeps{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	server := &compositeServer{
		service: service,
		ctx:     ctx,
		cancel:  cancel,
		started: true,
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := server.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatalf("expected server context to be canceled")
	}
	if err := server.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestWaitBeforeStart(t *testing.T) {
	server := &compositeServer{}
	if err := server.Wait(); err == nil {
		t.Fatalf("expected error when waiting on an unstarted server")
	}
}

func TestEventFanoutDeliversToEverySink(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	fanout := eventFanout{sinks: []core.EventSink{first, nil, second}}
	fanout.OnTabEvent(schema.TabEvent{Identity: "alice", Type: schema.TabEventPinned, TabID: "banking"})
	if len(first.events) != 1 || len(second.events) != 1 {
		t.Fatalf("expected one event per sink, got %d and %d", len(first.events), len(second.events))
	}
	if second.events[0].TabID != "banking" {
		t.Fatalf("unexpected event: %+v", second.events[0])
	}
}

type recordingSink struct {
	events []schema.TabEvent
}

func (r *recordingSink) OnTabEvent(event schema.TabEvent) {
	r.events = append(r.events, event)
}
