// Package domain holds the study guide model: the guide itself, its flash
// cards, quiz, topics and day-by-day schedule, plus the rules that keep a
// stored guide consistent (quiz answer bounds, schedule ordering, replan
// merging). It has no knowledge of HTTP, storage or the model provider.
package domain
