// Package task discovers and loads prompt input files. A task is one
// <name>_input_prompts.txt file in the input directory: one prompt per
// line, blank lines ignored.
package task

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"chatharvest/internal/types"
)

const inputSuffix = "_input_prompts.txt"

// Discover finds every *_input_prompts.txt in dir and loads each as a
// PromptTask, sorted by task name for a deterministic processing order.
func Discover(dir string) ([]types.PromptTask, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+inputSuffix))
	if err != nil {
		return nil, fmt.Errorf("scan input dir: %w", err)
	}
	sort.Strings(matches)

	tasks := make([]types.PromptTask, 0, len(matches))
	for _, path := range matches {
		t, err := Load(path)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Load reads one input file into a PromptTask. The task name is the
// filename with the input suffix stripped.
func Load(path string) (types.PromptTask, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.PromptTask{}, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	var prompts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return types.PromptTask{}, fmt.Errorf("read input file %s: %w", path, err)
	}

	return types.PromptTask{Name: TaskName(path), Prompts: prompts}, nil
}

// TaskName derives the task name from an input file path.
func TaskName(path string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(base, inputSuffix) {
		return strings.TrimSuffix(base, inputSuffix)
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
