package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// supportedImageExtensions are the source formats accepted for submission.
var supportedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// BatchResult records the outcome of one submission attempt within a batch.
type BatchResult struct {
	ImagePath string
	Prompt    string
	RemoteID  string
	Err       error
}

// BatchReport summarizes one batch submission run.
type BatchReport struct {
	Total     int
	Succeeded int
	Failed    int
	// SuccessRate is Succeeded/Total as a percentage, zero for empty batches.
	SuccessRate float64
	CreatedIDs  []string
	// Errors holds a bounded sample of per-item failures.
	Errors  []string
	Results []BatchResult
	// Mismatch is set when the image and prompt counts differed and the
	// batch was truncated to the shorter list.
	Mismatch string
}

// BatchSubmitter pairs a directory of images with a prompts file and submits
// one task per pair through the lifecycle engine.
type BatchSubmitter struct {
	engine *Engine
	logger *slog.Logger

	// sleep separates consecutive submissions. Overridable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBatchSubmitter creates a batch submitter on top of the lifecycle engine.
func NewBatchSubmitter(engine *Engine, logger *slog.Logger) (*BatchSubmitter, error) {
	if engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &BatchSubmitter{
		engine: engine,
		logger: logger.With("component", "batch_submitter"),
		sleep:  sleepCtx,
	}, nil
}

// SubmitBatch scans imagesDir for supported images, pairs them positionally
// with the non-blank lines of promptsFile, and creates one task per pair.
// Images sort naturally, so img2 precedes img10. When the counts differ the
// batch is truncated to the shorter list and the mismatch is reported.
// One failed submission never stops the rest.
func (b *BatchSubmitter) SubmitBatch(ctx context.Context, imagesDir, promptsFile string, offPeak bool, delay time.Duration) (BatchReport, error) {
	images, err := collectImages(imagesDir)
	if err != nil {
		return BatchReport{}, err
	}
	prompts, err := loadPrompts(promptsFile)
	if err != nil {
		return BatchReport{}, err
	}

	report := BatchReport{}
	count := len(images)
	if len(prompts) < count {
		count = len(prompts)
	}
	if len(images) != len(prompts) {
		report.Mismatch = fmt.Sprintf("%d images but %d prompts, submitting %d", len(images), len(prompts), count)
		b.logger.Warn("image and prompt counts differ", "images", len(images), "prompts", len(prompts), "submitting", count)
	}

	for i := 0; i < count; i++ {
		if i > 0 && delay > 0 {
			if err := b.sleep(ctx, delay); err != nil {
				return report, err
			}
		}

		result := BatchResult{ImagePath: images[i], Prompt: prompts[i]}
		task, err := b.engine.Create(ctx, images[i], prompts[i], offPeak)
		report.Total++
		if err != nil {
			result.Err = err
			report.Failed++
			if len(report.Errors) < maxReportedFailures {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", filepath.Base(images[i]), err))
			}
			b.logger.Error("batch item failed", "image", images[i], "error", err)
		} else {
			result.RemoteID = task.RemoteID
			report.Succeeded++
			report.CreatedIDs = append(report.CreatedIDs, task.RemoteID)
		}
		report.Results = append(report.Results, result)
	}

	if report.Total > 0 {
		report.SuccessRate = float64(report.Succeeded) / float64(report.Total) * 100
	}

	b.logger.Info("batch finished",
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", report.Failed)
	return report, nil
}

// collectImages lists the supported images in dir in natural order.
func collectImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read images directory %s: %v", ErrValidation, dir, err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if supportedImageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			images = append(images, filepath.Join(dir, entry.Name()))
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no supported images in %s", ErrValidation, dir)
	}

	sort.Slice(images, func(i, j int) bool {
		return naturalLess(filepath.Base(images[i]), filepath.Base(images[j]))
	})
	return images, nil
}

// loadPrompts reads the non-blank lines of a prompts file, one prompt per line.
func loadPrompts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read prompts file %s: %v", ErrValidation, path, err)
	}
	defer f.Close()

	var prompts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: cannot read prompts file %s: %v", ErrValidation, path, err)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("%w: prompts file %s is empty", ErrValidation, path)
	}
	return prompts, nil
}

// naturalLess orders strings with embedded numbers the way a human reads
// them: digit runs compare as integers, so "img2" sorts before "img10".
func naturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		aRun, aNum, aRest := nextRun(a)
		bRun, bNum, bRest := nextRun(b)

		if aNum && bNum {
			ai := strings.TrimLeft(aRun, "0")
			bi := strings.TrimLeft(bRun, "0")
			if len(ai) != len(bi) {
				return len(ai) < len(bi)
			}
			if ai != bi {
				return ai < bi
			}
		} else if aRun != bRun {
			return aRun < bRun
		}

		a, b = aRest, bRest
	}
	return len(a) < len(b)
}

// nextRun splits off the leading run of digits or non-digits.
func nextRun(s string) (run string, isNum bool, rest string) {
	isNum = s[0] >= '0' && s[0] <= '9'
	i := 1
	for i < len(s) && (s[i] >= '0' && s[i] <= '9') == isNum {
		i++
	}
	return s[:i], isNum, s[i:]
}

// sleepCtx sleeps for d, returning early when the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
