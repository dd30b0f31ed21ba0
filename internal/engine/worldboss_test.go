package engine

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/agents"
	"github.com/talgya/idle-arena/internal/balance"
)

func TestGenerateBoss(t *testing.T) {
	cfg := balance.Default().WorldBoss // base hp 100000, scaling 0.5, duration 1h
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	b := GenerateBoss(10, cfg, script(0), now)

	// 100000 × (1 + 10×0.5) = 600000
	if b.MaxHP != 600000 || b.CurrentHP != 600000 {
		t.Errorf("boss HP = %v/%v, want 600000/600000", b.CurrentHP, b.MaxHP)
	}
	if b.Status != BossActive {
		t.Errorf("status = %q, want active", b.Status)
	}
	if !b.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expiry = %v, want %v", b.ExpiresAt, now.Add(time.Hour))
	}
	if !slices.Contains(worldBossNames, b.Name) {
		t.Errorf("boss name %q not in pool", b.Name)
	}
	if b.ID == uuid.Nil {
		t.Error("boss id not assigned")
	}
}

func TestGenerateBossZeroPopulation(t *testing.T) {
	cfg := balance.Default().WorldBoss
	b := GenerateBoss(0, cfg, script(0), time.Now())
	if b.MaxHP != cfg.BaseHP {
		t.Errorf("empty-server boss HP = %v, want base %v", b.MaxHP, cfg.BaseHP)
	}
}

func TestBossAttackDamage(t *testing.T) {
	a := &agents.Agent{ID: uuid.New(), AttackPower: 100, ClickPower: 40, PrestigeMultiplier: 1.5}

	// Draw 0.5 makes the roll factor exactly 1.0.
	got := BossAttackDamage(a, script(0.5))
	want := math.Floor((100 + 40*0.5) * 1.5) // 180
	if got != want {
		t.Errorf("damage = %v, want %v", got, want)
	}
}

func TestBossAttackDamageRollBounds(t *testing.T) {
	a := &agents.Agent{ID: uuid.New(), AttackPower: 100, ClickPower: 0, PrestigeMultiplier: 1}

	lo := BossAttackDamage(a, script(0.0)) // roll factor 0.8
	hi := BossAttackDamage(a, script(0.999999))
	if lo != 80 {
		t.Errorf("minimum roll damage = %v, want 80", lo)
	}
	if hi < lo || hi >= 120 {
		t.Errorf("maximum roll damage = %v, want in [80, 120)", hi)
	}
}

func TestCalculateBossRewards(t *testing.T) {
	cfg := balance.Default().WorldBoss // base gold 10000, base gems 100, top mult 2

	tests := []struct {
		name     string
		total    float64
		dealt    float64
		top      bool
		wantGold int64
		wantGems int64
	}{
		{"half share", 1000, 500, false, 5000, 50},
		{"top multiplier doubles", 1000, 500, true, 10000, 100},
		{"zero total damage guard", 0, 0, false, 0, 1},
		{"tiny share floors gems at 1", 1e6, 1, false, 0, 1},
		{"full share", 400, 400, false, 10000, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := CalculateBossRewards(tt.total, tt.dealt, tt.top, cfg)
			if r.Gold != tt.wantGold || r.Gems != tt.wantGems {
				t.Errorf("rewards = (%d gold, %d gems), want (%d, %d)", r.Gold, r.Gems, tt.wantGold, tt.wantGems)
			}
		})
	}
}

func TestBossRewardSharesSumToOne(t *testing.T) {
	cfg := balance.Default().WorldBoss

	damages := []float64{1234, 9876, 55, 40000, 301, 7}
	total := 0.0
	for _, d := range damages {
		total += d
	}

	sum := 0.0
	for i, d := range damages {
		r := CalculateBossRewards(total, d, i < cfg.TopDamageCount, cfg)
		sum += r.Share
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("shares sum to %v, want 1", sum)
	}
}

func TestCalculateBossRewardsPanicsOnNegativeDamage(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for negative damage")
		}
	}()
	CalculateBossRewards(100, -1, false, balance.Default().WorldBoss)
}
