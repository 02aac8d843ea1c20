package app

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"teamchat/api/internal/store"
	"teamchat/api/internal/util"
)

const maxReactionValueLength = 16

// ReactionSummary is one emoji on a message with everyone who used it.
type ReactionSummary struct {
	Value     string   `json:"value"`
	Count     int      `json:"count"`
	MemberIDs []string `json:"memberIds"`
}

// Aggregate folds raw reaction rows into one summary per value. Count is the
// number of distinct members, so duplicate rows never inflate it. Values are
// ordered by their earliest reaction id and member ids are sorted, which
// makes the output independent of row order.
func Aggregate(rows []store.Reaction) []ReactionSummary {
	type group struct {
		firstID string
		members map[string]struct{}
	}
	groups := make(map[string]group)
	for _, row := range rows {
		g, ok := groups[row.Value]
		if !ok {
			g = group{firstID: row.ID, members: make(map[string]struct{})}
		} else if row.ID < g.firstID {
			g.firstID = row.ID
		}
		g.members[row.MemberID] = struct{}{}
		groups[row.Value] = g
	}

	values := make([]string, 0, len(groups))
	for value := range groups {
		values = append(values, value)
	}
	sort.Slice(values, func(i, j int) bool {
		a, b := groups[values[i]], groups[values[j]]
		if a.firstID != b.firstID {
			return a.firstID < b.firstID
		}
		return values[i] < values[j]
	})

	out := make([]ReactionSummary, 0, len(values))
	for _, value := range values {
		memberIDs := make([]string, 0, len(groups[value].members))
		for id := range groups[value].members {
			memberIDs = append(memberIDs, id)
		}
		sort.Strings(memberIDs)
		out = append(out, ReactionSummary{Value: value, Count: len(memberIDs), MemberIDs: memberIDs})
	}
	return out
}

// ToggleReaction flips the caller's value reaction on a message and returns
// the id of the row that was removed or added.
func (s *Service) ToggleReaction(ctx context.Context, caller Caller, messageID, value string) (string, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	value = strings.TrimSpace(value)
	if value == "" || utf8.RuneCountInString(value) > maxReactionValueLength {
		return "", validationError("Reaction must be a single emoji")
	}

	var (
		id      string
		removed bool
	)
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		message, err := q.GetMessage(ctx, messageID)
		if isNoRows(err) {
			return notFound("Message not found")
		}
		if err != nil {
			return err
		}
		member, err := requireMember(ctx, q, caller, message.WorkspaceID)
		if err != nil {
			return err
		}
		if message.ConversationID != "" {
			conversation, err := q.GetConversation(ctx, message.ConversationID)
			if err != nil {
				return err
			}
			if !isParticipant(conversation, member.ID) {
				return forbidden("Not a participant of this conversation")
			}
		}

		id, removed, err = q.DeleteReaction(ctx, message.ID, member.ID, value)
		if err != nil || removed {
			return err
		}
		id, err = q.InsertReaction(ctx, store.Reaction{
			ID:          util.NewID("rct"),
			WorkspaceID: message.WorkspaceID,
			MessageID:   message.ID,
			MemberID:    member.ID,
			Value:       value,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	direction := "on"
	if removed {
		direction = "off"
	}
	s.metrics.toggles.WithLabelValues(direction).Inc()
	return id, nil
}
