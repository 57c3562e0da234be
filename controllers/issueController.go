package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"emwananchi-core/lifecycle"
	"emwananchi-core/models"
	"emwananchi-core/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GetIssue retrieves an issue with its member reports and status history
func GetIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := issueStore.Get(ctx, issueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}

	reports, err := reportStore.ListByIssue(ctx, issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve member reports"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":             issue.ID,
		"category":       issue.Category,
		"centroid":       issue.Centroid,
		"status":         issue.Status,
		"unitId":         issue.UnitID,
		"reports":        reports,
		"history":        issue.Events,
		"createdAt":      issue.CreatedAt,
		"lastTransition": issue.LastTransition,
	})
}

// TransitionIssue applies a status transition on behalf of the
// authenticated actor
func TransitionIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	actorID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var input struct {
		TargetStatus string `json:"targetStatus" binding:"required"`
		Note         string `json:"note,omitempty" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, event, err := machine.Transition(ctx, issueID, models.IssueStatus(input.TargetStatus), actorID, input.Note)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, lifecycle.ErrUnauthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		case errors.Is(err, store.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Concurrent update conflict, please retry"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply transition"})
		}
		return
	}

	go notifyUnit(issue.UnitID, issue.ID, string(event.To),
		"Issue moved from "+string(event.From)+" to "+string(event.To))

	c.JSON(http.StatusOK, gin.H{
		"issueId": issueID,
		"status":  issue.Status,
		"event":   event,
	})
}

// ListIssues returns a paginated listing for public transparency views
func ListIssues(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	status := c.Query("status")
	if status != "" && !models.ValidStatus(models.IssueStatus(status)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}
	category := c.Query("category")
	if category != "" && !models.ValidCategory(models.ReportCategory(category)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category filter"})
		return
	}

	filter := store.IssueFilter{
		Status:   models.IssueStatus(status),
		Category: models.ReportCategory(category),
		UnitID:   c.Query("unit"),
		Page:     page,
		Limit:    limit,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issues, total, err := issueStore.List(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}

	if limit < 1 || limit > 100 {
		limit = 10
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))

	c.JSON(http.StatusOK, gin.H{
		"issues":      issues,
		"totalIssues": total,
		"totalPages":  totalPages,
		"currentPage": filter.Page,
	})
}
