package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillm/ads-engine/internal/domain"
)

// FormatRunSummary форматирует итог прогона для оператора
func FormatRunSummary(run *domain.OrchestratorRun) string {
	var sb strings.Builder

	switch run.Status {
	case domain.RunStatusCompleted:
		sb.WriteString("✅ Run completed")
	case domain.RunStatusCompletedWithErrors:
		sb.WriteString("⚠️ Run completed with errors")
	case domain.RunStatusFailed:
		sb.WriteString("❌ Run failed")
	default:
		sb.WriteString("📊 Run " + run.Status)
	}

	sb.WriteString(fmt.Sprintf("\n\nUser: %d\n", run.UserID))
	sb.WriteString(fmt.Sprintf("Type: %s\n", run.RunType))
	if !run.CompletedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Duration: %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Second)))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("🆕 Campaigns created: %d\n", run.CampaignsCreated))
	sb.WriteString(fmt.Sprintf("🏆 Winners promoted: %d\n", run.WinnersPromoted))
	sb.WriteString(fmt.Sprintf("📈 Budgets scaled: %d\n", run.BudgetsScaled))
	sb.WriteString(fmt.Sprintf("⏸ Ad-sets paused: %d\n", run.AdSetsPaused))
	if run.ErrorsCount > 0 {
		sb.WriteString(fmt.Sprintf("❌ Errors: %d\n", run.ErrorsCount))
	}

	return sb.String()
}

// FormatRunFailure форматирует сообщение об упавшем прогоне
func FormatRunFailure(userID int64, reason string) string {
	return fmt.Sprintf("❌ Run failed for user %d\n\nReason: %s", userID, reason)
}
