// Package alerts implements the rule evaluation engine and webhook delivery
// for status alerting. Rules watch one node each and are evaluated against the
// change sets the store publishes; webhooks are delivered to Teams, Slack or
// generic HTTP targets.
package alerts
