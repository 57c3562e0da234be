package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"emwananchi-core/aggregator"
	"emwananchi-core/config"
	"emwananchi-core/controllers"
	"emwananchi-core/escalation"
	"emwananchi-core/lifecycle"
	"emwananchi-core/models"
	"emwananchi-core/routes"
	"emwananchi-core/routing"
	"emwananchi-core/similarity"
	"emwananchi-core/store"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	settings := config.LoadSettings()

	resolver, err := routing.LoadFile(settings.JurisdictionsFile)
	if err != nil {
		log.Fatalf("Failed to load jurisdictions: %v", err)
	}

	var (
		reports       store.ReportStore
		issues        store.IssueStore
		auth          lifecycle.Authorizer
		notifier      escalation.Notifier
		notifications *mongo.Collection
		users         *mongo.Collection
		rateLimit     int
	)

	if settings.MemoryMode {
		log.Println("MEMORY_MODE: using in-memory stores, no Mongo or Redis")
		reports = store.NewMemReportStore()
		issues = store.NewMemIssueStore()
		auth = &lifecycle.StaticAuthorizer{}
		notifier = escalation.LogNotifier{}
	} else {
		db := config.ConnectDB()
		if db == nil {
			log.Fatal("Failed to connect to MongoDB")
		}
		if err := store.EnsureReportIndexes(db); err != nil {
			log.Fatalf("Failed to create report indexes: %v", err)
		}
		if err := store.EnsureIssueIndexes(db); err != nil {
			log.Fatalf("Failed to create issue indexes: %v", err)
		}
		config.ConnectRedis()

		reports = store.NewMongoReportStore(db)
		issues = store.NewMongoIssueStore(db)
		auth = lifecycle.NewMongoAuthorizer(db)
		notifier = escalation.NewMongoNotifier(db)
		notifications = db.Collection("notifications")
		users = db.Collection("users")
		rateLimit = settings.ReportRateLimit
	}

	index := similarity.NewIndex(settings.RadiusMeters, settings.GeoWeight, settings.TextWeight, similarity.TokenOverlapScorer{})
	if err := rebuildIndex(index, issues, reports); err != nil {
		log.Fatalf("Failed to rebuild similarity index: %v", err)
	}

	agg := aggregator.New(reports, issues, index, resolver, settings.MergeThreshold)
	machine := lifecycle.NewMachine(issues, auth, index)

	scheduler := escalation.NewScheduler(issues, notifier, settings.ScanInterval, map[models.IssueStatus]time.Duration{
		models.Reported:     settings.ReportedThreshold,
		models.Acknowledged: settings.AckThreshold,
		models.InProgress:   settings.InProgressThreshold,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Run(ctx)

	controllers.Setup(reports, issues, agg, machine, notifications, users)

	r := gin.Default()

	routes.AuthRoutes(r)
	routes.ReportRoutes(r, rateLimit)
	routes.IssueRoutes(r)
	routes.NotificationRoutes(r)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if err := r.Run(":" + settings.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// rebuildIndex reloads the spatial grid from the active issues, using each
// issue's oldest member report as its representative description.
func rebuildIndex(index *similarity.Index, issues store.IssueStore, reports store.ReportStore) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	active, err := issues.ListActive(ctx)
	if err != nil {
		return err
	}

	index.Rebuild(active, func(issue *models.Issue) string {
		members, err := reports.ListByIssue(ctx, issue.ID)
		if err != nil || len(members) == 0 {
			return ""
		}
		return members[0].Description
	})
	log.Printf("Similarity index rebuilt with %d active issues", len(active))
	return nil
}
