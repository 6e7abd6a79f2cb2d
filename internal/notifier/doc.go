// Package notifier delivers operator messages to a Telegram chat.
//
// It is used for the per-run summary and as the logx Telegram sink. Long
// texts are split on line boundaries to stay under the message size limit.
package notifier
