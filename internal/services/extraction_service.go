// Package services – ExtractionService
//
// This file implements the on-demand daily extraction: all messages across a
// manager's active connections within a 24h window, handed to the provider
// with a prompt that demands extraction rather than summarization. There is
// no caching.
package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/config"
	"github.com/bridgeos/go-bridge-backend/internal/repo"
	"github.com/bridgeos/go-bridge-backend/internal/translate"
)

// extractionWindow is the fixed look-back of the daily view.
const extractionWindow = 24 * time.Hour

// EmptyWindowResponse is returned without touching the provider when there
// are no messages to extract from.
const EmptyWindowResponse = "No messages found in the last 24 hours.\n\nStart a conversation with your worker to see action items here!"

// ExtractionService produces the daily action-item list.
type ExtractionService struct {
	DB         *gorm.DB
	Translator translate.Translator
	Industries map[string]config.Industry
}

// DailyActionItems gathers the manager's last-24h traffic grouped by worker
// and asks the provider for a flat bullet list in the manager's UI language.
func (s *ExtractionService) DailyActionItems(ctx context.Context, managerID int64) (string, error) {
	manager, err := repo.GetUser(ctx, s.DB, managerID)
	if err != nil {
		return "", err
	}
	if manager == nil {
		return "", ErrNotRegistered
	}

	conns, err := repo.ListActiveForManager(ctx, s.DB, managerID)
	if err != nil {
		return "", err
	}

	since := time.Now().UTC().Add(-extractionWindow)
	transcripts := make([]translate.WorkerTranscript, 0, len(conns))
	for _, conn := range conns {
		msgs, err := repo.ListSince(ctx, s.DB, conn.ConnectionID, since)
		if err != nil {
			return "", err
		}
		if len(msgs) == 0 {
			continue
		}
		lines := make([]translate.TranscriptLine, 0, len(msgs))
		for _, m := range msgs {
			lines = append(lines, translate.TranscriptLine{At: m.SentAt, Text: m.OriginalText})
		}
		transcripts = append(transcripts, translate.WorkerTranscript{
			WorkerName: s.workerName(ctx, conn.WorkerID),
			Lines:      lines,
		})
	}

	if len(transcripts) == 0 {
		return EmptyWindowResponse, nil
	}

	industryName, industryDesc := "", ""
	if m, err := repo.GetManager(ctx, s.DB, managerID); err == nil && m != nil {
		if ind, ok := s.Industries[m.Industry]; ok {
			industryName, industryDesc = ind.Name, ind.Description
		}
	}

	return s.Translator.ExtractActionItems(ctx, translate.ExtractionRequest{
		Transcripts:         transcripts,
		IndustryName:        industryName,
		IndustryDescription: industryDesc,
		OutputLanguage:      manager.UILanguage,
	})
}

func (s *ExtractionService) workerName(ctx context.Context, workerID int64) string {
	if u, err := repo.GetUser(ctx, s.DB, workerID); err == nil && u != nil && u.DisplayName != "" {
		return u.DisplayName
	}
	return fmt.Sprintf("Worker %d", workerID)
}
