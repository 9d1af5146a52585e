package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/rs/zerolog/log"

	"ludo-table-bot/internal/model"
	"ludo-table-bot/internal/tablemsg"
)

// LifecycleService owns the table state machine: open on creation,
// matched on accept, completed or cancelled on resolution. The store is
// the source of truth; the group chat message is the human-visible
// projection, re-posted at each transition with a fresh table number.
type LifecycleService struct {
	tables     TableStore
	users      UserStore
	settlement *SettlementService
	gateway    Gateway
}

// NewLifecycleService creates a new LifecycleService instance.
func NewLifecycleService(tables TableStore, users UserStore, settlement *SettlementService, gateway Gateway) *LifecycleService {
	return &LifecycleService{
		tables:     tables,
		users:      users,
		settlement: settlement,
		gateway:    gateway,
	}
}

// newTableNumber rolls the human-facing 4-digit display id. Collisions are
// acceptable: it is a display label, not a key.
func newTableNumber() int {
	return rand.IntN(9000) + 1000
}

// CreateTable opens a new table for the creator: supersedes any prior open
// table of theirs, broadcasts the open-table message, and links the
// delivered message id. An open table never exists without a live public
// message, so a failed broadcast rolls the row back.
func (s *LifecycleService) CreateTable(ctx context.Context, creatorID, amount int64, gameType string, options []string) (*model.Table, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load creator: %w", err)
	}

	staleMessages, err := s.tables.SupersedeOpenByCreator(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to supersede prior tables: %w", err)
	}
	s.deleteStaleMessages(ctx, staleMessages)

	tableNumber := newTableNumber()
	rawOptions := tablemsg.JoinOptions(options)

	table, err := s.tables.Insert(ctx, creatorID, amount, gameType, rawOptions, tableNumber)
	if err != nil {
		return nil, err
	}

	text, entities := tablemsg.EncodeOpen(tablemsg.UserLabel(creator), amount, gameType, options)
	messageID, err := s.gateway.SendGroup(ctx, text, entities)
	if err != nil {
		if cerr := s.tables.CancelOpen(ctx, table.ID); cerr != nil {
			log.Error().Err(cerr).Int64("table_id", table.ID).Msg("Failed to roll back table after broadcast failure")
		}
		return nil, fmt.Errorf("failed to broadcast table: %w", err)
	}

	if err := s.tables.SetMessageID(ctx, table.ID, messageID); err != nil {
		// Without the linkage no reply can ever locate the table, so the
		// broadcast is withdrawn and the creation surfaced as failed.
		if derr := s.gateway.DeleteGroupMessage(ctx, messageID); derr != nil {
			log.Warn().Err(derr).Int("message_id", messageID).Msg("Failed to delete unlinked broadcast")
		}
		if cerr := s.tables.CancelOpen(ctx, table.ID); cerr != nil {
			log.Error().Err(cerr).Int64("table_id", table.ID).Msg("Failed to roll back unlinked table")
		}
		return nil, fmt.Errorf("failed to link broadcast message: %w", err)
	}

	table.MessageID = &messageID
	log.Info().
		Int64("table_id", table.ID).
		Int64("creator_id", creatorID).
		Int64("amount", amount).
		Str("game_type", gameType).
		Int("table_number", tableNumber).
		Msg("Table created")
	return table, nil
}

// LocateTableForReply resolves which table a reply refers to, by the
// message id of the table's live chat message. Replies that cannot be
// linked this way are rejected: matching by amount and game type is
// ambiguous when two identical tables are open, so the degraded fallback
// is deliberately not supported.
func (s *LifecycleService) LocateTableForReply(ctx context.Context, replyMessageID int, expected model.TableStatus) (*model.Table, error) {
	return s.tables.FindByMessageID(ctx, replyMessageID, expected)
}

// AcceptTable matches an open table with an acceptor: escrows both stakes
// atomically, posts the "A Vs. B" message, and deletes the original
// open-table broadcast. A failed debit on either side aborts the whole
// transition.
func (s *LifecycleService) AcceptTable(ctx context.Context, table *model.Table, acceptor *model.User) (*model.Table, error) {
	if acceptor.TelegramID == table.CreatorID {
		return nil, ErrSelfAccept
	}

	creator, err := s.users.GetByID(ctx, table.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load creator: %w", err)
	}

	tableNumber := newTableNumber()
	matched, err := s.settlement.Escrow(ctx, table, acceptor.TelegramID, tableNumber)
	if err != nil {
		return nil, err
	}

	text, entities := tablemsg.EncodeMatched(
		tablemsg.UserLabel(creator),
		tablemsg.UserLabel(acceptor),
		matched.Amount,
		matched.GameType,
		matched.Options,
		tableNumber,
	)
	messageID, err := s.gateway.SendGroup(ctx, text, entities)
	if err != nil {
		// The escrow is already durable but the players never saw the
		// match, so compensate by refunding and cancelling.
		if _, rerr := s.settlement.Refund(ctx, matched); rerr != nil {
			log.Error().Err(rerr).Int64("table_id", table.ID).Msg("Failed to refund after match announcement failure")
		}
		return nil, fmt.Errorf("failed to announce match: %w", err)
	}

	if table.MessageID != nil {
		if derr := s.gateway.DeleteGroupMessage(ctx, *table.MessageID); derr != nil {
			log.Warn().Err(derr).Int("message_id", *table.MessageID).Msg("Failed to delete superseded open-table message")
		}
	}

	if err := s.tables.SetMessageID(ctx, table.ID, messageID); err != nil {
		log.Error().Err(err).Int64("table_id", table.ID).Msg("Failed to link match message; admin replies will not locate this table")
	}
	matched.MessageID = &messageID

	log.Info().
		Int64("table_id", table.ID).
		Int64("creator_id", creator.TelegramID).
		Int64("acceptor_id", acceptor.TelegramID).
		Int64("amount", matched.Amount).
		Int("table_number", tableNumber).
		Msg("Table matched")
	return matched, nil
}

// ResolveWin completes a matched table: the winner is credited their stake
// plus the loser's stake minus commission, and the result is announced
// publicly and to the winner directly. Returns the credited amount.
func (s *LifecycleService) ResolveWin(ctx context.Context, table *model.Table, winnerID int64) (int64, error) {
	if !table.IsParticipant(winnerID) {
		return 0, ErrNotParticipant
	}

	winner, err := s.users.GetByID(ctx, winnerID)
	if err != nil {
		return 0, fmt.Errorf("failed to load winner: %w", err)
	}

	winnerAmount, err := s.settlement.Payout(ctx, table, winnerID)
	if err != nil {
		return 0, err
	}

	text, entities := tablemsg.EncodeWin(tablemsg.UserLabel(winner), winnerAmount, table.TableNumber)
	if _, err := s.gateway.SendGroup(ctx, text, entities); err != nil {
		// The payout is committed; the announcement failure is surfaced so
		// the resolving admin knows the group never saw the result.
		return winnerAmount, fmt.Errorf("payout committed but announcement failed: %w", err)
	}

	direct := fmt.Sprintf("🏆 You won Table #%d! Rs.%d.00 has been credited to your balance.", table.TableNumber, winnerAmount)
	if err := s.gateway.SendDirect(ctx, winnerID, direct); err != nil {
		log.Warn().Err(err).Int64("winner_id", winnerID).Msg("Failed to notify winner privately")
	}

	log.Info().
		Int64("table_id", table.ID).
		Int64("winner_id", winnerID).
		Int64("winner_amount", winnerAmount).
		Int64("commission", s.settlement.Commission(table.Amount)).
		Msg("Table resolved with winner")
	return winnerAmount, nil
}

// ResolveCancel cancels a matched table and refunds both stakes.
func (s *LifecycleService) ResolveCancel(ctx context.Context, table *model.Table) (*model.Table, error) {
	cancelled, err := s.settlement.Refund(ctx, table)
	if err != nil {
		return nil, err
	}

	creator, err := s.users.GetByID(ctx, cancelled.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load creator: %w", err)
	}
	acceptor, err := s.users.GetByID(ctx, *cancelled.AcceptorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load acceptor: %w", err)
	}

	text, entities := tablemsg.EncodeCancelled(
		tablemsg.UserLabel(creator),
		tablemsg.UserLabel(acceptor),
		cancelled.Amount,
		cancelled.TableNumber,
	)
	if _, err := s.gateway.SendGroup(ctx, text, entities); err != nil {
		return cancelled, fmt.Errorf("refund committed but announcement failed: %w", err)
	}

	log.Info().
		Int64("table_id", cancelled.ID).
		Int64("amount", cancelled.Amount).
		Msg("Table cancelled with refund")
	return cancelled, nil
}

// ResolveWinner maps a declared winner reference to one of the table's two
// participants. The reference is either a user id recovered from a
// text-mention entity, an "@username", or a bare first name.
func (s *LifecycleService) ResolveWinner(ctx context.Context, table *model.Table, mentionID int64, mentionText string) (int64, error) {
	if mentionID != 0 {
		if table.IsParticipant(mentionID) {
			return mentionID, nil
		}
		return 0, ErrNotParticipant
	}

	candidates := []int64{table.CreatorID}
	if table.AcceptorID != nil {
		candidates = append(candidates, *table.AcceptorID)
	}
	for _, id := range candidates {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("failed to load participant: %w", err)
		}
		label := tablemsg.UserLabel(user)
		if strings.EqualFold(label.Text, mentionText) {
			return id, nil
		}
	}
	return 0, ErrNotParticipant
}

func (s *LifecycleService) deleteStaleMessages(ctx context.Context, messageIDs []int) {
	for _, messageID := range messageIDs {
		if err := s.gateway.DeleteGroupMessage(ctx, messageID); err != nil {
			log.Warn().Err(err).Int("message_id", messageID).Msg("Failed to delete superseded table message")
		}
	}
}
