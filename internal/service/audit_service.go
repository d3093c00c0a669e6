package service

import (
	"context"
	"encoding/json"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/rs/zerolog"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id"`
	ActorRole  string `json:"actor_role"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	// Record writes an audit row. Failures are logged and never returned.
	Record(ctx context.Context, actor model.Actor, action, entityID, entityName string, details any)
	GetAuditLogs(ctx context.Context, filter repository.AuditListFilter) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
	logger    zerolog.Logger
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repository.AuditRepository, logger zerolog.Logger) AuditService {
	return &auditService{auditRepo: auditRepo, logger: logger.With().Str("component", "audit").Logger()}
}

func (s *auditService) Record(ctx context.Context, actor model.Actor, action, entityID, entityName string, details any) {
	payload := "{}"
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			payload = string(b)
		}
	}

	entry := &model.AuditLog{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    payload,
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Str("entity_id", entityID).Msg("failed to write audit log")
	}
}

func (s *auditService) GetAuditLogs(ctx context.Context, filter repository.AuditListFilter) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			ActorID:    l.ActorID,
			ActorRole:  l.ActorRole,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
