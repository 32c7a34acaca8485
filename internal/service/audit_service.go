package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"techtrack/internal/event"
	"techtrack/internal/model"
	"techtrack/pkg/apierror"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
	// maxAuditPage keeps (page-1)*limit far from integer overflow.
	maxAuditPage = 1_000_000
)

// AuditStore persists audit entries. Query expects a normalized page and
// limit and returns the matching page plus the total match count.
type AuditStore interface {
	Append(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error)
}

// AuditService records bus events as audit entries.
type AuditService struct {
	store AuditStore
	bus   event.Bus
}

func NewAuditService(store AuditStore, bus event.Bus) *AuditService {
	return &AuditService{store: store, bus: bus}
}

// Start subscribes before returning so no event published afterwards is
// missed. The returned channel closes once ctx is done and the consumer has
// stopped.
func (s *AuditService) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	events, unsubscribe := s.bus.Subscribe()

	go func() {
		defer close(done)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				s.record(e)
			}
		}
	}()

	return done
}

func (s *AuditService) record(e event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.Append(ctx, entryFromEvent(e)); err != nil {
		slog.Error("failed to append audit entry", "type", e.Type, "event_id", e.ID, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) (model.AuditListData, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Page > maxAuditPage {
		query.Page = maxAuditPage
	}
	if query.Limit <= 0 {
		query.Limit = defaultAuditLimit
	}
	if query.Limit > maxAuditLimit {
		query.Limit = maxAuditLimit
	}
	query.Action = strings.TrimSpace(query.Action)
	query.ActorID = strings.TrimSpace(query.ActorID)
	query.Status = strings.TrimSpace(query.Status)

	if query.ActorID != "" {
		if _, ok := parseActorID(query.ActorID); !ok {
			return model.AuditListData{}, apierror.BadRequest("invalid actor_id", query.ActorID)
		}
	}

	items, total, err := s.store.Query(ctx, query)
	if err != nil {
		return model.AuditListData{}, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + query.Limit - 1) / query.Limit
	}

	return model.AuditListData{
		Items: items,
		Meta:  model.Meta{Page: query.Page, Limit: query.Limit, Total: total, TotalPages: totalPages},
	}, nil
}

func entryFromEvent(e event.Event) model.AuditEntry {
	status := model.AuditStatusSuccess
	if e.Type == event.TypeLoginFailed {
		status = model.AuditStatusFailure
	}

	occurredAt := e.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	return model.AuditEntry{
		Action:     string(e.Type),
		OccurredAt: occurredAt.UTC(),
		Actor: model.AuditActor{
			UserID:   e.ActorID,
			Username: e.ActorUsername,
			IP:       e.ClientIP,
		},
		Status:   status,
		Resource: e.Resource,
		Error:    e.Reason,
	}
}

func parseActorID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}
