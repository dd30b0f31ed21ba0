package game

import (
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/balance"
	"github.com/talgya/idle-arena/internal/engine"
	"github.com/talgya/idle-arena/internal/entropy"
	"github.com/talgya/idle-arena/internal/persistence"
)

func newTestGame(t *testing.T, seed uint64) *Game {
	t.Helper()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, balance.Default(), entropy.NewSeeded(seed), slog.Default())
}

func TestClickCooldownAndGold(t *testing.T) {
	g := newTestGame(t, 1)
	now := time.Now()

	a, err := g.CreateAgent("clicker", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := g.Click(a.ID, now)
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if res.Gold != 1 || res.XP != 1 {
		t.Errorf("click result = %v gold %v xp, want 1/1", res.Gold, res.XP)
	}

	if _, err := g.Click(a.ID, now); !errors.Is(err, ErrOnCooldown) {
		t.Errorf("immediate second click error = %v, want ErrOnCooldown", err)
	}
	if _, err := g.Click(a.ID, now.Add(2*time.Second)); err != nil {
		t.Errorf("click after cooldown: %v", err)
	}

	got, _ := g.Agent(a.ID)
	if got.Gold != 2 || got.TotalClicks != 2 {
		t.Errorf("gold=%v clicks=%d, want 2/2", got.Gold, got.TotalClicks)
	}
}

func TestIdleTickEarnings(t *testing.T) {
	g := newTestGame(t, 1)
	now := time.Now()

	a, err := g.CreateAgent("idler", now)
	if err != nil {
		t.Fatal(err)
	}

	res, err := g.IdleTick(a.ID, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	// Rate 1/s for 3600s at karma 1.
	if res.Gold != 3600 {
		t.Errorf("idle gold = %v, want 3600", res.Gold)
	}

	// A second tick right away earns nothing more.
	res, err = g.IdleTick(a.ID, now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if res.Gold != 0 {
		t.Errorf("repeat tick gold = %v, want 0", res.Gold)
	}
}

func TestAttackSettlement(t *testing.T) {
	g := newTestGame(t, 7)
	now := time.Now()

	attacker, _ := g.CreateAgent("bully", now)
	defender, _ := g.CreateAgent("victim", now)

	attacker.Level = 5
	attacker.AttackPower = 1000
	attacker.PowerScore = 1000
	if err := g.store.UpdateAgent(attacker); err != nil {
		t.Fatal(err)
	}
	defender.Level = 5
	if err := g.store.UpdateAgent(defender); err != nil {
		t.Fatal(err)
	}
	if err := g.store.AddGold(defender.ID.String(), 2000); err != nil {
		t.Fatal(err)
	}

	// 1000 vs 10 base power cannot flip inside a ±20% roll.
	result, err := g.Attack(attacker.ID, defender.ID, now)
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if !result.AttackerWins {
		t.Fatalf("attacker lost with 100x power advantage")
	}
	if result.GoldTransferred != 200 {
		t.Errorf("transferred = %v, want 200 (10%% of 2000)", result.GoldTransferred)
	}

	att, _ := g.Agent(attacker.ID)
	def, _ := g.Agent(defender.ID)
	if att.Gold != 200 || def.Gold != 1800 {
		t.Errorf("gold after attack = %v/%v, want 200/1800", att.Gold, def.Gold)
	}
	if att.TotalPvPWins != 1 || def.TotalPvPLosses != 1 {
		t.Errorf("records = %d wins / %d losses, want 1/1", att.TotalPvPWins, def.TotalPvPLosses)
	}
	if !def.Shielded(now.Add(time.Minute)) {
		t.Error("defender not shielded after being attacked")
	}

	// The fresh shield now blocks a follow-up even after the attack
	// cooldown lapses.
	_, err = g.Attack(attacker.ID, defender.ID, now.Add(10*time.Minute))
	if !errors.Is(err, ErrAttackBlocked) {
		t.Errorf("shielded attack error = %v, want ErrAttackBlocked", err)
	}
}

func TestAttackBlockedByPeaceTreaty(t *testing.T) {
	g := newTestGame(t, 7)
	now := time.Now()

	attacker, _ := g.CreateAgent("bully", now)
	defender, _ := g.CreateAgent("victim", now)
	attacker.Level = 5
	defender.Level = 5
	g.store.UpdateAgent(attacker)
	g.store.UpdateAgent(defender)

	if _, err := g.SpawnEvent("peace_treaty", now); err != nil {
		t.Fatalf("spawn event: %v", err)
	}
	if _, err := g.Attack(attacker.ID, defender.ID, now); !errors.Is(err, ErrPvPDisabled) {
		t.Errorf("attack under peace treaty error = %v, want ErrPvPDisabled", err)
	}
}

func TestRunDungeonFloorsAndEnergy(t *testing.T) {
	g := newTestGame(t, 3)
	now := time.Now()

	a, _ := g.CreateAgent("delver", now)

	if _, err := g.RunDungeon(a.ID, 2, nil, now); !errors.Is(err, ErrFloorLocked) {
		t.Fatalf("skip to floor 2 error = %v, want ErrFloorLocked", err)
	}

	res, err := g.RunDungeon(a.ID, 1, nil, now)
	if err != nil {
		t.Fatalf("floor 1: %v", err)
	}
	if !res.Outcome.Success {
		t.Fatalf("fresh agent lost floor 1: %+v", res.Outcome)
	}
	if res.Rewards.Gold != 70 || res.Rewards.XP != 7 {
		t.Errorf("rewards = %d gold %d xp, want 70/7", res.Rewards.Gold, res.Rewards.XP)
	}
	if res.EnergyCost != 10 || res.Energy != 90 {
		t.Errorf("energy = cost %d remaining %d, want 10/90", res.EnergyCost, res.Energy)
	}

	got, _ := g.Agent(a.ID)
	if got.HighestFloor != 1 {
		t.Errorf("highest floor = %d, want 1", got.HighestFloor)
	}
	// Floor 2 is unlocked now.
	if _, err := g.RunDungeon(a.ID, 2, nil, now); err != nil {
		t.Errorf("floor 2 after clearing 1: %v", err)
	}
}

func TestBossLifecycle(t *testing.T) {
	g := newTestGame(t, 11)
	now := time.Now()

	a, _ := g.CreateAgent("slayer", now)
	a.AttackPower = 300000
	if err := g.store.UpdateAgent(a); err != nil {
		t.Fatal(err)
	}

	if _, err := g.CurrentBoss(now); !errors.Is(err, ErrNoActiveBoss) {
		t.Fatalf("boss before spawn error = %v, want ErrNoActiveBoss", err)
	}

	boss, err := g.SpawnBoss(now)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	// One active agent: 100000 * 1.5.
	if boss.MaxHP != 150000 {
		t.Errorf("boss hp = %v, want 150000", boss.MaxHP)
	}
	if _, err := g.SpawnBoss(now); err == nil {
		t.Error("second spawn while active should fail")
	}

	// 300000 * [0.8, 1.2) always one-shots 150000 HP.
	hit, err := g.AttackBoss(a.ID, now)
	if err != nil {
		t.Fatalf("attack boss: %v", err)
	}
	if !hit.Defeated || hit.BossHP != 0 {
		t.Fatalf("hit = %+v, want defeated at 0 HP", hit)
	}

	if _, err := g.AttackBoss(a.ID, now.Add(2*time.Minute)); !errors.Is(err, ErrNoActiveBoss) {
		t.Errorf("attack after defeat error = %v, want ErrNoActiveBoss", err)
	}

	// Sole contributor with full share and the top-damage bonus.
	claim, err := g.ClaimBossRewards(a.ID, nil, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claim.Claimed != 1 || claim.Gold != 20000 || claim.Gems != 200 {
		t.Errorf("claim = %+v, want 1 reward, 20000 gold, 200 gems", claim)
	}

	// Claiming again pays nothing.
	claim, err = g.ClaimBossRewards(a.ID, nil, now)
	if err != nil {
		t.Fatal(err)
	}
	if claim.Claimed != 0 {
		t.Errorf("second claim = %+v, want empty", claim)
	}
}

func TestBossAttackCooldown(t *testing.T) {
	g := newTestGame(t, 11)
	now := time.Now()

	a, _ := g.CreateAgent("poker", now)
	if _, err := g.SpawnBoss(now); err != nil {
		t.Fatal(err)
	}

	if _, err := g.AttackBoss(a.ID, now); err != nil {
		t.Fatalf("first attack: %v", err)
	}
	if _, err := g.AttackBoss(a.ID, now.Add(10*time.Second)); !errors.Is(err, ErrOnCooldown) {
		t.Errorf("rapid second attack error = %v, want ErrOnCooldown", err)
	}
	if _, err := g.AttackBoss(a.ID, now.Add(2*time.Minute)); err != nil {
		t.Errorf("attack after cooldown: %v", err)
	}
}

func TestMarketEscrowAndSettlement(t *testing.T) {
	g := newTestGame(t, 5)
	now := time.Now()

	buyer, _ := g.CreateAgent("buyer", now)
	seller, _ := g.CreateAgent("seller", now)
	if err := g.store.AddGold(buyer.ID.String(), 10000); err != nil {
		t.Fatal(err)
	}
	if err := g.store.AddGems(seller.ID.String(), 20); err != nil {
		t.Fatal(err)
	}

	sell, err := g.SubmitOrder(seller.ID, engine.SideSell, 90, 10, now)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if len(sell.Matches) != 0 {
		t.Fatalf("sell into empty book matched %d", len(sell.Matches))
	}
	s, _ := g.Agent(seller.ID)
	if s.Gems != 10 {
		t.Errorf("seller gems after escrow = %v, want 10", s.Gems)
	}

	buy, err := g.SubmitOrder(buyer.ID, engine.SideBuy, 100, 5, now.Add(time.Second))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if len(buy.Matches) != 1 {
		t.Fatalf("buy matched %d fills, want 1", len(buy.Matches))
	}
	m := buy.Matches[0]
	if m.Price != 90 || m.Quantity != 5 || m.Fee != 22.5 {
		t.Errorf("match = %+v, want price 90, qty 5, fee 22.5", m)
	}
	if buy.Order.Status != engine.OrderFilled {
		t.Errorf("taker order status = %s, want filled", buy.Order.Status)
	}

	// Buyer: 10000 - 500 escrow + 50 price-improvement refund.
	b, _ := g.Agent(buyer.ID)
	if b.Gold != 9550 || b.Gems != 5 {
		t.Errorf("buyer = %v gold %v gems, want 9550/5", b.Gold, b.Gems)
	}
	// Seller: 5 * 90 - 22.5 fee.
	s, _ = g.Agent(seller.ID)
	if s.Gold != 427.5 || s.Gems != 10 {
		t.Errorf("seller = %v gold %v gems, want 427.5/10", s.Gold, s.Gems)
	}

	// Cancel the seller's half-filled order; the unfilled 5 gems come
	// back.
	cancelled, err := g.CancelOrder(seller.ID, sell.Order.ID, now.Add(2*time.Second))
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != engine.OrderCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	s, _ = g.Agent(seller.ID)
	if s.Gems != 15 {
		t.Errorf("seller gems after refund = %v, want 15", s.Gems)
	}

	trades, err := g.RecentTrades(10)
	if err != nil || len(trades) != 1 {
		t.Fatalf("trades = %v (err %v), want one record", trades, err)
	}
	if trades[0].Fee != 22.5 {
		t.Errorf("logged fee = %v, want 22.5", trades[0].Fee)
	}
}

func TestSubmitOrderRejections(t *testing.T) {
	g := newTestGame(t, 5)
	now := time.Now()

	a, _ := g.CreateAgent("trader", now)
	if _, err := g.SubmitOrder(a.ID, engine.SideBuy, 100, 0.5, now); !errors.Is(err, ErrOrderTooSmall) {
		t.Errorf("tiny order error = %v, want ErrOrderTooSmall", err)
	}
	// No gold yet.
	if _, err := g.SubmitOrder(a.ID, engine.SideBuy, 100, 5, now); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("broke buy error = %v, want ErrInsufficientFunds", err)
	}
	if _, err := g.SubmitOrder(a.ID, engine.SideSell, 100, 5, now); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("gemless sell error = %v, want ErrInsufficientFunds", err)
	}
}

func TestFailedSubmitUnwindRefundsEscrow(t *testing.T) {
	g := newTestGame(t, 5)
	now := time.Now()

	a, _ := g.CreateAgent("unlucky", now)
	if err := g.store.AddGems(a.ID.String(), 10); err != nil {
		t.Fatal(err)
	}

	// Escrow and rest the order the way a submit cycle does.
	if err := g.store.DeductGemsIfSufficient(a.ID.String(), 10); err != nil {
		t.Fatal(err)
	}
	order := &engine.Order{
		ID:        uuid.New(),
		AgentID:   a.ID,
		Side:      engine.SideSell,
		Price:     90,
		Quantity:  10,
		Status:    engine.OrderOpen,
		CreatedAt: now,
	}
	if err := g.store.InsertOrder(order); err != nil {
		t.Fatal(err)
	}

	// Unwind with 4 of the 10 gems already settled: the order closes
	// and the unsettled 6 come back.
	g.abortSubmit(order, 4)

	got, _ := g.Agent(a.ID)
	if got.Gems != 6 {
		t.Errorf("gems after unwind = %v, want 6", got.Gems)
	}
	o, err := g.store.GetOrder(order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != engine.OrderCancelled {
		t.Errorf("order status = %s, want cancelled", o.Status)
	}
}

func TestTakerOrderRowRecordsFills(t *testing.T) {
	g := newTestGame(t, 5)
	now := time.Now()

	buyer, _ := g.CreateAgent("taker", now)
	seller, _ := g.CreateAgent("maker", now)
	if err := g.store.AddGold(buyer.ID.String(), 1000); err != nil {
		t.Fatal(err)
	}
	if err := g.store.AddGems(seller.ID.String(), 3); err != nil {
		t.Fatal(err)
	}

	if _, err := g.SubmitOrder(seller.ID, engine.SideSell, 90, 3, now); err != nil {
		t.Fatal(err)
	}
	buy, err := g.SubmitOrder(buyer.ID, engine.SideBuy, 90, 3, now.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}

	// The persisted taker row carries the fill, not just the response.
	row, err := g.store.GetOrder(buy.Order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.Filled != 3 || row.Status != engine.OrderFilled {
		t.Errorf("taker row = filled %v status %s, want 3/filled", row.Filled, row.Status)
	}
}

func TestRespondToEventOnce(t *testing.T) {
	g := newTestGame(t, 9)
	now := time.Now()

	a, _ := g.CreateAgent("responder", now)
	if err := g.store.AddGold(a.ID.String(), 1000); err != nil {
		t.Fatal(err)
	}

	ev, err := g.SpawnEvent("merchant", now)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	res, err := g.RespondToEvent(a.ID, ev.ID, "buy", now)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if res.Gold != -500 || res.Gems != 50 {
		t.Errorf("net = %v gold %v gems, want -500/+50", res.Gold, res.Gems)
	}

	got, _ := g.Agent(a.ID)
	if got.Gold != 500 || got.Gems != 50 {
		t.Errorf("balances = %v/%v, want 500 gold, 50 gems", got.Gold, got.Gems)
	}

	if _, err := g.RespondToEvent(a.ID, ev.ID, "sell", now); !errors.Is(err, ErrAlreadyResponded) {
		t.Errorf("second response error = %v, want ErrAlreadyResponded", err)
	}
	if _, err := g.RespondToEvent(a.ID, ev.ID, "bogus", now); !errors.Is(err, ErrBadChoice) {
		t.Errorf("unknown choice error = %v, want ErrBadChoice", err)
	}
	if _, err := g.RespondToEvent(a.ID, ev.ID, "buy", now.Add(time.Hour)); !errors.Is(err, ErrEventClosed) {
		t.Errorf("expired event error = %v, want ErrEventClosed", err)
	}
}

func TestFailedEventCostKeepsSlotOpen(t *testing.T) {
	g := newTestGame(t, 9)
	now := time.Now()

	a, _ := g.CreateAgent("pauper", now)
	ev, err := g.SpawnEvent("merchant", now)
	if err != nil {
		t.Fatal(err)
	}

	// Broke: the cost deduction fails and the one-per-event slot must
	// stay open.
	if _, err := g.RespondToEvent(a.ID, ev.ID, "buy", now); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("broke respond error = %v, want ErrInsufficientFunds", err)
	}

	if err := g.store.AddGold(a.ID.String(), 1000); err != nil {
		t.Fatal(err)
	}
	if _, err := g.RespondToEvent(a.ID, ev.ID, "buy", now); err != nil {
		t.Fatalf("respond after top-up: %v", err)
	}

	// A duplicate attempt pays nothing: the cost taken up front comes
	// back when the response row is refused.
	if _, err := g.RespondToEvent(a.ID, ev.ID, "buy", now); !errors.Is(err, ErrAlreadyResponded) {
		t.Fatalf("duplicate error = %v, want ErrAlreadyResponded", err)
	}
	got, _ := g.Agent(a.ID)
	if got.Gold != 500 || got.Gems != 50 {
		t.Errorf("balances after duplicate = %v gold %v gems, want 500/50", got.Gold, got.Gems)
	}
}

func TestClaimPaysEachRewardRow(t *testing.T) {
	g := newTestGame(t, 11)
	now := time.Now()

	a, _ := g.CreateAgent("collector", now)
	rewards := []persistence.BossReward{
		{BossID: uuid.New(), AgentID: a.ID, GoldReward: 4000, GemReward: 40, IsTopDamage: true, CreatedAt: now},
		{BossID: uuid.New(), AgentID: a.ID, GoldReward: 1500, GemReward: 15, CreatedAt: now},
	}
	if err := g.store.InsertBossRewards(rewards); err != nil {
		t.Fatal(err)
	}

	claim, err := g.ClaimBossRewards(a.ID, nil, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claim.Claimed != 2 || claim.Gold != 5500 || claim.Gems != 55 {
		t.Errorf("claim = %+v, want 2 rewards, 5500 gold, 55 gems", claim)
	}

	got, _ := g.Agent(a.ID)
	if got.Gold != 5500 || got.Gems != 55 {
		t.Errorf("balances = %v/%v, want 5500 gold, 55 gems", got.Gold, got.Gems)
	}
}

func TestPrestigeResets(t *testing.T) {
	g := newTestGame(t, 13)
	now := time.Now()

	a, _ := g.CreateAgent("climber", now)
	if _, err := g.Prestige(a.ID, now); !errors.Is(err, ErrPrestigeLocked) {
		t.Fatalf("early prestige error = %v, want ErrPrestigeLocked", err)
	}

	a.Level = 50
	a.HighestFloor = 30
	if err := g.store.UpdateAgent(a); err != nil {
		t.Fatal(err)
	}
	if err := g.store.AddGold(a.ID.String(), 99999); err != nil {
		t.Fatal(err)
	}
	if err := g.store.AddGems(a.ID.String(), 42); err != nil {
		t.Fatal(err)
	}

	res, err := g.Prestige(a.ID, now)
	if err != nil {
		t.Fatalf("prestige: %v", err)
	}
	if res.PrestigeLevel != 1 || res.Multiplier != 1.1 {
		t.Errorf("result = %+v, want level 1, multiplier 1.1", res)
	}

	got, _ := g.Agent(a.ID)
	if got.Level != 1 || got.Gold != 0 || got.HighestFloor != 0 {
		t.Errorf("reset incomplete: level=%d gold=%v floor=%d", got.Level, got.Gold, got.HighestFloor)
	}
	if got.Gems != 42 {
		t.Errorf("gems = %v, want 42 to survive prestige", got.Gems)
	}
}
