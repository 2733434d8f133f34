package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"votematch/llm"
	"votematch/logger"
	"votematch/metrics"
	"votematch/models"

	"golang.org/x/time/rate"
)

const paraphrasePrompt = `Analyze the following text and provide two outputs:

1. Classification: Determine if the text is an "opinion", "fact", or "proposal"
2. Transformed text:
   - If it's a fact or proposal, convert it to the most equivalent opinion
   - Make it the most assertive opinion possible
   - Keep it concise

Text to analyze: %q

Respond in JSON format:
{
  "classification": "opinion|fact|proposal",
  "transformed_text": "your transformed text here"
}`

// ParaphraserConfig controls pacing and retries. MaxRetries of zero retries
// rate-limited requests until the context is done.
type ParaphraserConfig struct {
	RetryWait         time.Duration
	RequestsPerMinute int
	MaxRetries        int
}

// Paraphraser turns raw candidate statements into assertive quiz opinions
type Paraphraser struct {
	model   llm.TextModel
	limiter *rate.Limiter
	cfg     ParaphraserConfig
	metrics *metrics.Metrics
	log     *logger.Logger
}

// ParaphraseReport counts the rows ProcessCSV handled
type ParaphraseReport struct {
	Rows   int
	Failed int
}

func NewParaphraser(model llm.TextModel, cfg ParaphraserConfig, m *metrics.Metrics, log *logger.Logger) *Paraphraser {
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Paraphraser{
		model:   model,
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
		metrics: m,
		log:     log.With("service", "Paraphraser", "provider", model.Provider()),
	}
}

// Paraphrase classifies one statement and rewrites it as an opinion
func (p *Paraphraser) Paraphrase(ctx context.Context, text string) (models.Paraphrase, error) {
	raw, err := p.generate(ctx, fmt.Sprintf(paraphrasePrompt, text))
	if err != nil {
		p.metrics.ParaphraseRequest(p.model.Provider(), metrics.StatusFailed)
		return models.Paraphrase{}, err
	}

	result, err := parseParaphrase(raw)
	if err != nil {
		p.metrics.ParaphraseRequest(p.model.Provider(), metrics.StatusFailed)
		return models.Paraphrase{}, err
	}
	p.metrics.ParaphraseRequest(p.model.Provider(), metrics.StatusSuccess)
	return result, nil
}

func (p *Paraphraser) generate(ctx context.Context, prompt string) (string, error) {
	for attempt := 1; ; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", err
		}
		out, err := p.model.Generate(ctx, prompt)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, llm.ErrRateLimited) {
			return "", err
		}
		if p.cfg.MaxRetries > 0 && attempt > p.cfg.MaxRetries {
			return "", fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		p.log.Warn("rate limit hit, waiting", "retry", attempt, "wait", p.cfg.RetryWait.String())
		timer := time.NewTimer(p.cfg.RetryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

func parseParaphrase(raw string) (models.Paraphrase, error) {
	var result models.Paraphrase
	if err := json.Unmarshal([]byte(llm.CleanModelOutput(raw)), &result); err != nil {
		return models.Paraphrase{}, fmt.Errorf("failed to decode model output: %w", err)
	}
	result.Classification = strings.ToLower(strings.TrimSpace(result.Classification))
	result.TransformedText = strings.TrimSpace(result.TransformedText)

	switch result.Classification {
	case models.ClassificationOpinion, models.ClassificationFact, models.ClassificationProposal:
	default:
		return models.Paraphrase{}, fmt.Errorf("unexpected classification %q", result.Classification)
	}
	if result.TransformedText == "" {
		return models.Paraphrase{}, errors.New("model returned empty transformed_text")
	}
	return result, nil
}

// ProcessCSV reads rows with "id" and "text" columns and writes
// id,original_text,classification,transformed_text. A row that cannot be
// paraphrased is written with classification ERROR and the error message.
func (p *Paraphraser) ProcessCSV(ctx context.Context, in io.Reader, out io.Writer) (ParaphraseReport, error) {
	var report ParaphraseReport

	reader := csv.NewReader(in)
	header, err := reader.Read()
	if err != nil {
		return report, fmt.Errorf("failed to read csv header: %w", err)
	}
	idCol, textCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case "id":
			idCol = i
		case "text":
			textCol = i
		}
	}
	if idCol < 0 || textCol < 0 {
		return report, errors.New(`csv header must contain "id" and "text" columns`)
	}

	writer := csv.NewWriter(out)
	if err := writer.Write([]string{"id", "original_text", "classification", "transformed_text"}); err != nil {
		return report, fmt.Errorf("failed to write csv header: %w", err)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, fmt.Errorf("failed to read csv row %d: %w", report.Rows+1, err)
		}
		id, text := record[idCol], record[textCol]
		report.Rows++
		p.log.Info("paraphrasing statement", "id", id)

		row := []string{id, text, "", ""}
		result, err := p.Paraphrase(ctx, text)
		if ctxErr := ctx.Err(); ctxErr != nil {
			writer.Flush()
			return report, ctxErr
		}
		if err != nil {
			report.Failed++
			p.log.Warn("paraphrase failed", "id", id, "error", err)
			row[2], row[3] = models.ClassificationError, err.Error()
		} else {
			row[2], row[3] = result.Classification, result.TransformedText
		}
		if err := writer.Write(row); err != nil {
			return report, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return report, fmt.Errorf("failed to flush csv: %w", err)
	}
	p.log.Info("paraphrasing complete", "rows", report.Rows, "failed", report.Failed)
	return report, nil
}
