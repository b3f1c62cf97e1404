package service

import "github.com/noah-isme/salon-pos-api/internal/models"

// Routing reasons surfaced to the approver UI.
const (
	ReasonSupervisorSolo   = "Supervisor performed and closed alone"
	ReasonReceptionistSolo = "Receptionist with service capability performed and closed alone"
	ReasonDualRoleSolo     = "Dual-role employee performed and closed alone"
	ReasonStandardPeer     = "Standard peer approval"
)

// RoutingInput is the read-only snapshot of a ticket at the instant it is
// closed: who closed it, the roles the closer held at that instant, and the
// distinct performers across its items.
type RoutingInput struct {
	ClosedBy      string
	ClosedByRoles models.RoleSet
	PerformerIDs  []string
}

// Route computes the minimum approval level for a closed ticket. Escalation
// fires only on solo control: exactly one performer who is also the closer.
// A supervisor who merely closes someone else's work, or who shares the work
// with any other performer, never escalates.
//
// Route is pure and must be invoked exactly once, when closedAt transitions
// from null, using the closer's roles at that instant.
func Route(in RoutingInput) models.RoutingDecision {
	performerCount := len(distinct(in.PerformerIDs))
	closerIsPerformer := contains(in.PerformerIDs, in.ClosedBy)
	soloControl := performerCount == 1 && closerIsPerformer

	roles := in.ClosedByRoles
	switch {
	case soloControl && roles.Has(models.RoleSupervisor):
		return models.RoutingDecision{
			Level:          models.LevelManager,
			Reason:         ReasonSupervisorSolo,
			RequiresHigher: true,
			SoloControl:    true,
		}
	case soloControl && roles.Has(models.RoleReceptionist) && roles.CanPerformServices():
		return models.RoutingDecision{
			Level:          models.LevelSupervisor,
			Reason:         ReasonReceptionistSolo,
			RequiresHigher: true,
			SoloControl:    true,
		}
	case soloControl && roles.Has(models.RoleTechnician) && roles.Has(models.RoleReceptionist):
		return models.RoutingDecision{
			Level:          models.LevelManager,
			Reason:         ReasonDualRoleSolo,
			RequiresHigher: true,
			SoloControl:    true,
		}
	default:
		return models.RoutingDecision{
			Level:          models.LevelTechnician,
			Reason:         ReasonStandardPeer,
			RequiresHigher: false,
			SoloControl:    soloControl,
		}
	}
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
