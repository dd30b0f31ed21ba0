// PvP combat: precondition checks and roll resolution.
package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/agents"
	"github.com/talgya/idle-arena/internal/balance"
	"github.com/talgya/idle-arena/internal/entropy"
)

// CombatResult is the immutable outcome of one PvP attack. Exactly one
// of GoldTransferred (attacker win) or GoldLost (defender win) is
// non-zero. The defender's loss on an attacker win mirrors the
// transfer; the attacker's loss on a defender win is a pure sink with
// no counterpart credit.
type CombatResult struct {
	AttackerWins  bool      `json:"attacker_wins"`
	WinnerID      uuid.UUID `json:"winner_id"`
	AttackerPower float64   `json:"attacker_power"`
	DefenderPower float64   `json:"defender_power"`
	AttackerRoll  float64   `json:"attacker_roll"`
	DefenderRoll  float64   `json:"defender_roll"`

	// GoldTransferred moves from defender to attacker on attacker win.
	GoldTransferred float64 `json:"gold_transferred"`
	// GoldLost is forfeited by the attacker on defender win.
	GoldLost float64 `json:"gold_lost"`
}

// CanAttack checks every PvP precondition and returns all violations
// together, so callers can present the complete explanation rather
// than the first failure.
func CanAttack(attacker, defender *agents.Agent, cfg balance.PvP, now time.Time) (bool, []string) {
	var reasons []string

	if attacker.Level < cfg.MinLevel {
		reasons = append(reasons, fmt.Sprintf("must be level %d to attack", cfg.MinLevel))
	}

	cooldown := cfg.AttackCooldown.Std()
	if since := now.Sub(attacker.LastAttackAt); since < cooldown {
		wait := int(math.Ceil((cooldown - since).Seconds()))
		reasons = append(reasons, fmt.Sprintf("attack cooldown: %ds remaining", wait))
	}

	if defender.Shielded(now) {
		wait := int(math.Ceil(defender.ShieldUntil.Sub(now).Seconds()))
		reasons = append(reasons, fmt.Sprintf("target has shield: %ds remaining", wait))
	}

	if attacker.SameAlliance(defender) {
		reasons = append(reasons, "cannot attack alliance members")
	}

	if attacker.ID == defender.ID {
		reasons = append(reasons, "cannot attack yourself")
	}

	return len(reasons) == 0, reasons
}

// ResolveCombat rolls both sides' powers perturbed by ±RandomFactor
// and settles gold. Ties favor the defender (attackerWins requires a
// strictly greater roll).
func ResolveCombat(attacker, defender *agents.Agent, cfg balance.PvP, src entropy.Source) CombatResult {
	if attacker.AttackPower < 0 || defender.DefensePower < 0 {
		panic(fmt.Sprintf("engine: negative combat power (%s vs %s)", attacker.ID, defender.ID))
	}
	if attacker.Gold < 0 || defender.Gold < 0 {
		panic(fmt.Sprintf("engine: negative gold balance (%s vs %s)", attacker.ID, defender.ID))
	}

	atkRoll := attacker.AttackPower * (1 + entropy.Uniform(src, -1, 1)*cfg.RandomFactor)
	defRoll := defender.DefensePower * (1 + entropy.Uniform(src, -1, 1)*cfg.RandomFactor)

	attackerWins := atkRoll > defRoll

	var transferred, lost float64
	if attackerWins {
		transferred = math.Min(defender.Gold*cfg.GoldStealPercent, cfg.GoldStealCap)
	} else {
		lost = attacker.Gold * cfg.LoserGoldLossPercent
	}

	result := CombatResult{
		AttackerWins:    attackerWins,
		WinnerID:        defender.ID,
		AttackerPower:   attacker.AttackPower,
		DefenderPower:   defender.DefensePower,
		AttackerRoll:    round2(atkRoll),
		DefenderRoll:    round2(defRoll),
		GoldTransferred: round2(transferred),
		GoldLost:        round2(lost),
	}
	if attackerWins {
		result.WinnerID = attacker.ID
	}
	return result
}

// round2 rounds to 2 decimal places (currency display precision).
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// round4 rounds to 4 decimal places (fee precision).
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
