package game

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/agents"
	"github.com/talgya/idle-arena/internal/engine"
	"github.com/talgya/idle-arena/internal/persistence"
)

// FindTargets lists attackable opponents within the power band around
// the searcher's score.
func (g *Game) FindTargets(agentID uuid.UUID, now time.Time, limit int) ([]*agents.Agent, error) {
	a, err := g.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}

	band := g.cfg.PvP.PowerRange
	minPower := a.PowerScore * (1 - band)
	maxPower := a.PowerScore * (1 + band)
	return g.store.FindTargets(a, minPower, maxPower, g.cfg.PvP.MinLevel, now, limit)
}

// Attack resolves one PvP attack and applies its consequences: gold
// moves on an attacker win, the attacker forfeits gold on a loss, the
// defender gains a shield either way, and both sides' records update.
func (g *Game) Attack(attackerID, defenderID uuid.UUID, now time.Time) (*engine.CombatResult, error) {
	attacker, err := g.store.GetAgent(attackerID)
	if err != nil {
		return nil, err
	}
	defender, err := g.store.GetAgent(defenderID)
	if err != nil {
		return nil, err
	}

	effects, err := g.activeEffects(now)
	if err != nil {
		return nil, err
	}
	if effects[engine.EffectPvPDisabled] != 0 {
		return nil, fmt.Errorf("attack %s -> %s: %w", attackerID, defenderID, ErrPvPDisabled)
	}

	if ok, reasons := engine.CanAttack(attacker, defender, g.cfg.PvP, now); !ok {
		return nil, fmt.Errorf("attack %s -> %s: %s: %w",
			attackerID, defenderID, strings.Join(reasons, "; "), ErrAttackBlocked)
	}

	// war_drums boosts the attacker's effective power for the roll
	// only; the stored stat is untouched.
	boosted := *attacker
	boosted.AttackPower *= effectOr(effects, engine.EffectAttackMultiplier, 1)

	result := engine.ResolveCombat(&boosted, defender, g.cfg.PvP, g.src)

	attacker.LastAttackAt = now
	defender.ShieldUntil = now.Add(g.cfg.PvP.ShieldDuration.Std())
	if result.AttackerWins {
		attacker.TotalPvPWins++
		defender.TotalPvPLosses++
	} else {
		attacker.TotalPvPLosses++
		defender.TotalPvPWins++
	}

	if err := g.store.UpdateAgent(attacker); err != nil {
		return nil, fmt.Errorf("attack %s -> %s: %w", attackerID, defenderID, err)
	}
	if err := g.store.UpdateAgent(defender); err != nil {
		return nil, fmt.Errorf("attack %s -> %s: %w", attackerID, defenderID, err)
	}

	if result.AttackerWins && result.GoldTransferred > 0 {
		err := g.store.DeductGoldIfSufficient(defenderID.String(), result.GoldTransferred)
		switch {
		case errors.Is(err, persistence.ErrInsufficientFunds):
			// The defender spent down between resolution and
			// settlement; nothing moves.
			result.GoldTransferred = 0
		case err != nil:
			return nil, fmt.Errorf("attack settlement: %w", err)
		default:
			if err := g.store.AddGold(attackerID.String(), result.GoldTransferred); err != nil {
				return nil, fmt.Errorf("attack settlement: %w", err)
			}
		}
	}
	if !result.AttackerWins && result.GoldLost > 0 {
		// Forfeited gold leaves the economy entirely.
		err := g.store.DeductGoldIfSufficient(attackerID.String(), result.GoldLost)
		switch {
		case errors.Is(err, persistence.ErrInsufficientFunds):
			result.GoldLost = 0
		case err != nil:
			return nil, fmt.Errorf("attack settlement: %w", err)
		}
	}

	if err := g.store.LogPvP(attackerID, defenderID, result, now); err != nil {
		return nil, fmt.Errorf("attack log: %w", err)
	}
	g.log.Info("pvp resolved",
		"attacker", attackerID, "defender", defenderID,
		"attacker_wins", result.AttackerWins,
		"gold_transferred", result.GoldTransferred, "gold_lost", result.GoldLost)
	return &result, nil
}
