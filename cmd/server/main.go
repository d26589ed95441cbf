// Package main implements the entry point for the study guide API server,
// which turns uploaded course material into AI-generated study guides with
// flashcards, quizzes and an adaptive study schedule.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
