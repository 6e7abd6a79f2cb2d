// Package scheduler triggers jobs from cron expressions, daily HH:MM times or
// fixed intervals. A trigger that fires while the previous run of the same job
// is still in progress is skipped.
package scheduler
