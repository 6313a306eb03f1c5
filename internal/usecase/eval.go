package usecase

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
)

// EvalRow is one question from the evaluation CSV.
type EvalRow struct {
	Namespace string
	Question  string
}

// Evaluator runs a question set across a sweep of token budgets and writes
// the answers as CSV, for comparing answer quality against budget size.
type Evaluator struct {
	asker   *Asker
	showBar bool
}

func NewEvaluator(asker *Asker, showBar bool) *Evaluator {
	return &Evaluator{asker: asker, showBar: showBar}
}

// ReadQuestions parses an evaluation CSV with columns namespace,question.
// A header row is detected and skipped.
func ReadQuestions(path string) ([]EvalRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var rows []EvalRow
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if len(record) < 2 {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(record[0]), "namespace") {
				continue
			}
		}
		ns := strings.TrimSpace(record[0])
		q := strings.TrimSpace(record[1])
		if q == "" {
			continue
		}
		rows = append(rows, EvalRow{Namespace: ns, Question: q})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no questions found in %s", path)
	}
	return rows, nil
}

// Run answers every question at every budget and streams CSV to out.
// A failed question becomes an error row rather than aborting the sweep.
func (e *Evaluator) Run(rows []EvalRow, budgets []int, out io.Writer) error {
	if len(budgets) == 0 {
		return fmt.Errorf("no budgets given")
	}

	writer := csv.NewWriter(out)
	defer writer.Flush()

	header := []string{"namespace", "question", "budget", "used_tokens", "snippets", "answer"}
	if err := writer.Write(header); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if e.showBar {
		bar = progressbar.Default(int64(len(rows)*len(budgets)), "evaluating")
	}

	for _, row := range rows {
		for _, budget := range budgets {
			record := e.answerRow(row, budget)
			if err := writer.Write(record); err != nil {
				return err
			}
			if bar != nil {
				bar.Add(1)
			}
		}
		writer.Flush()
	}
	return writer.Error()
}

func (e *Evaluator) answerRow(row EvalRow, budget int) []string {
	answer, _, err := e.asker.Ask(row.Namespace, row.Question, budget)
	if err != nil {
		return []string{row.Namespace, row.Question, strconv.Itoa(budget), "", "", "ERROR: " + err.Error()}
	}
	return []string{
		row.Namespace,
		row.Question,
		strconv.Itoa(budget),
		strconv.Itoa(answer.UsedTokens),
		strconv.Itoa(answer.Snippets),
		answer.Text,
	}
}
