package controllers

import (
	"emwananchi-core/aggregator"
	"emwananchi-core/lifecycle"
	"emwananchi-core/store"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	reportStore store.ReportStore
	issueStore  store.IssueStore
	agg         *aggregator.Aggregator
	machine     *lifecycle.Machine

	// notificationColl is nil in MEMORY_MODE; notification endpoints then
	// serve empty results and alert writes are skipped.
	notificationColl *mongo.Collection
	userColl         *mongo.Collection
)

// Setup wires the handler package to the engine built in main.
func Setup(reports store.ReportStore, issues store.IssueStore, a *aggregator.Aggregator, m *lifecycle.Machine, notifications, users *mongo.Collection) {
	reportStore = reports
	issueStore = issues
	agg = a
	machine = m
	notificationColl = notifications
	userColl = users
}
