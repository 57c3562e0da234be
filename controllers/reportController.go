package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"emwananchi-core/models"
	"emwananchi-core/routing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmitReport handles a citizen submission: the report is persisted, then
// the aggregator either merges it into an existing issue or opens a new one.
func SubmitReport(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	submitterID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	// Coordinates bind through pointers: "required" on a plain float64
	// rejects the zero value, and latitude 0 is a legitimate point on the
	// equator. Bounds are checked in Validate.
	var input struct {
		Category    string   `json:"category" binding:"required"`
		Description string   `json:"description" binding:"required,max=1000"`
		Latitude    *float64 `json:"latitude" binding:"required"`
		Longitude   *float64 `json:"longitude" binding:"required"`
		MediaRef    *string  `json:"mediaRef,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := models.Report{
		SubmittedBy: submitterID,
		Category:    models.ReportCategory(input.Category),
		Description: input.Description,
		Location:    models.GeoPoint{Latitude: *input.Latitude, Longitude: *input.Longitude},
		MediaRef:    input.MediaRef,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reportID, err := reportStore.Submit(ctx, &report)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store report"})
		return
	}

	issue, created, err := agg.Resolve(ctx, &report)
	if err != nil {
		if errors.Is(err, routing.ErrNoJurisdiction) {
			log.Printf("routing failure for report %s: %v", reportID.Hex(), err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve report into an issue"})
		return
	}

	if created {
		// Alert the responsible unit outside the request path.
		go notifyUnit(issue.UnitID, issue.ID, "reported", "A new issue was reported in your jurisdiction")
	}

	c.JSON(http.StatusCreated, gin.H{
		"reportId": reportID,
		"issueId":  issue.ID,
		"status":   issue.Status,
		"merged":   !created,
	})
}

// notifyUnit records an advisory notification for a unit's officials.
// Fire-and-forget: failures are logged, never surfaced to the citizen.
func notifyUnit(unitID string, issueID primitive.ObjectID, verb, detail string) {
	if notificationColl == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := notificationColl.InsertOne(ctx, models.Notification{
		UnitID:    unitID,
		IssueID:   issueID,
		Verb:      verb,
		Detail:    detail,
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Printf("Failed to write %q notification for unit %s: %v", verb, unitID, err)
	}
}
