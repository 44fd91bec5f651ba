package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/bondswap/internal/curve"
	"github.com/rovshanmuradov/bondswap/internal/events"
	"github.com/rovshanmuradov/bondswap/internal/logger"
	"github.com/rovshanmuradov/bondswap/internal/market"
	"github.com/rovshanmuradov/bondswap/internal/pool"
	"github.com/rovshanmuradov/bondswap/internal/swap"
	"github.com/rovshanmuradov/bondswap/internal/ui/style"
)

// TraderFunds is airdropped to the console's session trader.
const TraderFunds = 1_000_000_000

type tradeMsg struct {
	receipt *swap.Receipt
	err     error
}

type eventMsg struct{ event events.Event }

// console is a single-screen pool console: pick a pool, leg, strategy and
// amount, then buy or sell as the session trader.
type console struct {
	ctx     context.Context
	market  *market.Market
	trader  solana.PublicKey
	pools   []*pool.LiquidityPool
	poolIdx int

	leg      pool.Leg
	strategy curve.Strategy
	amount   textinput.Model

	journal *events.Journal
	updates chan events.Event
	ring    *logger.Ring
	styles  style.Styles

	status    string
	statusErr bool
	busy      bool
	width     int
	height    int
}

func newConsole(ctx context.Context, m *market.Market, ring *logger.Ring) (*console, error) {
	pools := m.Registry.List()
	if len(pools) == 0 {
		return nil, pool.ErrPoolNotFound
	}

	trader := solana.NewWallet().PublicKey()
	if err := m.FundTrader(ctx, trader, TraderFunds); err != nil {
		return nil, fmt.Errorf("failed to fund trader: %w", err)
	}

	amount := textinput.New()
	amount.Placeholder = "units"
	amount.CharLimit = 12
	amount.Width = 14
	amount.SetValue("1")
	amount.Focus()

	c := &console{
		ctx:      ctx,
		market:   m,
		trader:   trader,
		pools:    pools,
		leg:      pool.LegA,
		strategy: curve.Linear,
		amount:   amount,
		journal:  events.NewJournal(10),
		updates:  make(chan events.Event, 64),
		ring:     ring,
		styles:   style.NewStyles(style.DefaultPalette()),
		status:   "ready",
	}

	forward := func(_ context.Context, ev events.Event) error {
		select {
		case c.updates <- ev:
		default:
		}
		return nil
	}
	for _, t := range []events.EventType{events.TradeSettled, events.TradeAborted} {
		m.Bus.Subscribe(t, c.journal)
		m.Bus.SubscribeFunc(t, forward)
	}
	return c, nil
}

func (c *console) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, c.listen())
}

func (c *console) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-c.updates:
			return eventMsg{event: ev}
		case <-c.ctx.Done():
			return tea.Quit()
		}
	}
}

func (c *console) pool() *pool.LiquidityPool {
	return c.pools[c.poolIdx]
}

func (c *console) request() (swap.Request, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(c.amount.Value()), 10, 64)
	if err != nil {
		return swap.Request{}, fmt.Errorf("invalid amount %q", c.amount.Value())
	}
	return swap.Request{
		Pool:     c.pool(),
		Leg:      c.leg,
		Amount:   n,
		Strategy: c.strategy,
		Trader:   c.trader,
	}, nil
}

func (c *console) trade(dir swap.Direction) tea.Cmd {
	req, err := c.request()
	if err != nil {
		c.status, c.statusErr = err.Error(), true
		return nil
	}
	c.busy = true
	c.status, c.statusErr = dir.String()+" pending", false

	engine := c.market.Engine
	ctx := c.ctx
	return func() tea.Msg {
		var rc *swap.Receipt
		var err error
		if dir == swap.Buy {
			rc, err = engine.Buy(ctx, req)
		} else {
			rc, err = engine.Sell(ctx, req)
		}
		return tradeMsg{receipt: rc, err: err}
	}
}

func (c *console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width, c.height = msg.Width, msg.Height
		return c, nil

	case tradeMsg:
		c.busy = false
		if msg.err != nil {
			c.status, c.statusErr = fmt.Sprintf("%s: %v", swap.KindOf(msg.err), msg.err), true
		} else {
			rc := msg.receipt
			c.status, c.statusErr = fmt.Sprintf("%s %d %s for %d lamports", rc.Direction, rc.Amount, rc.Leg, rc.TotalPrice), false
		}
		c.market.Observe(c.ctx, c.pool())
		return c, nil

	case eventMsg:
		return c, c.listen()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return c, tea.Quit
		case "b":
			if !c.busy {
				return c, c.trade(swap.Buy)
			}
			return c, nil
		case "s":
			if !c.busy {
				return c, c.trade(swap.Sell)
			}
			return c, nil
		case "tab", "l":
			if c.leg == pool.LegA {
				c.leg = pool.LegB
			} else {
				c.leg = pool.LegA
			}
			return c, nil
		case "t":
			if c.strategy == curve.Linear {
				c.strategy = curve.Exponential
			} else {
				c.strategy = curve.Linear
			}
			return c, nil
		case "n":
			c.poolIdx = (c.poolIdx + 1) % len(c.pools)
			return c, nil
		}
		if msg.Type == tea.KeyBackspace || msg.Type == tea.KeyDelete || isDigits(msg) {
			var cmd tea.Cmd
			c.amount, cmd = c.amount.Update(msg)
			return c, cmd
		}
	}
	return c, nil
}

func isDigits(msg tea.KeyMsg) bool {
	if msg.Type != tea.KeyRunes || len(msg.Runes) == 0 {
		return false
	}
	for _, r := range msg.Runes {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (c *console) View() string {
	s := c.styles
	p := c.pool()

	header := s.Title.Render("bondswap") + "  " + s.Muted.Render(fmt.Sprintf("pool %d/%d", c.poolIdx+1, len(c.pools)))

	poolPanel := s.Panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		s.Field("pool", short(p.Address)),
		s.Field("custody a", c.balance(c.market.Ledger.TokenBalance, p.CustodyA)),
		s.Field("custody b", c.balance(c.market.Ledger.TokenBalance, p.CustodyB)),
		s.Field("reserve", c.balance(c.market.Ledger.Lamports, p.Reserve)),
	))

	ataA, _ := p.TraderAccount(c.trader, pool.LegA)
	ataB, _ := p.TraderAccount(c.trader, pool.LegB)
	traderPanel := s.Panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		s.Field("trader", short(c.trader)),
		s.Field("lamports", c.balance(c.market.Ledger.Lamports, c.trader)),
		s.Field("leg a", c.balance(c.market.Ledger.TokenBalance, ataA)),
		s.Field("leg b", c.balance(c.market.Ledger.TokenBalance, ataB)),
	))

	orderPanel := s.Panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		s.Field("leg", c.leg.String()),
		s.Field("strategy", c.strategy.String()),
		lipgloss.JoinHorizontal(lipgloss.Top, s.Label.Render("amount"), c.amount.View()),
		c.quoteLine(),
	))

	status := s.Success.Render(c.status)
	if c.statusErr {
		status = s.Error.Render(c.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, poolPanel, traderPanel, orderPanel),
		status,
		"",
		s.Title.Render("Recent trades"),
		c.tradesView(),
		"",
		s.Title.Render("Log"),
		s.Muted.Render(strings.Join(c.ring.Lines(6), "\n")),
		"",
		s.Muted.Render("b buy • s sell • tab leg • t strategy • n next pool • q quit"),
	)
}

func (c *console) quoteLine() string {
	req, err := c.request()
	if err != nil {
		return c.styles.Warning.Render(err.Error())
	}
	q, err := c.market.Engine.Quote(c.ctx, req)
	if err != nil {
		return c.styles.Warning.Render(swap.KindOf(err).String())
	}
	return c.styles.Field("quote", q.TotalPrice)
}

func (c *console) tradesView() string {
	evs := c.journal.Events()
	if len(evs) == 0 {
		return c.styles.Muted.Render("none yet")
	}
	lines := make([]string, 0, len(evs))
	for i := len(evs) - 1; i >= 0; i-- {
		switch ev := evs[i].(type) {
		case events.TradeSettledEvent:
			lines = append(lines, fmt.Sprintf("%s %s %d %s @%d  %s lamports",
				ev.EventTime.Format("15:04:05"), c.styles.Direction(ev.Direction),
				ev.Amount, ev.Leg, ev.Supply, style.FormatAmount(ev.TotalPrice)))
		case events.TradeAbortedEvent:
			lines = append(lines, fmt.Sprintf("%s %s %d %s  %s",
				ev.EventTime.Format("15:04:05"), c.styles.Direction(ev.Direction),
				ev.Amount, ev.Leg, c.styles.Error.Render(ev.Kind+" at "+ev.Phase)))
		}
	}
	return strings.Join(lines, "\n")
}

type balanceFunc func(context.Context, solana.PublicKey) (uint64, error)

func (c *console) balance(read balanceFunc, key solana.PublicKey) string {
	v, err := read(c.ctx, key)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "-"
		}
		return "0"
	}
	return style.FormatAmount(v)
}

func short(key solana.PublicKey) string {
	s := key.String()
	if len(s) <= 12 {
		return s
	}
	return s[:6] + ".." + s[len(s)-4:]
}
