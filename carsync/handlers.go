package carsync

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sevene/garayi-carwash-v2-sub001/cart"
	"github.com/sevene/garayi-carwash-v2-sub001/config"
	"github.com/sevene/garayi-carwash-v2-sub001/models"
	"github.com/sevene/garayi-carwash-v2-sub001/utils"
)

// bindErrorBody shapes a bind failure for the register UI: per-field tags
// for validation errors, a generic message for malformed JSON.
func bindErrorBody(err error) gin.H {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(validationErrs)}
	}
	return gin.H{"error": "invalid request"}
}

// taxRate reads the register's tax rate once per call so an .env change only
// needs a restart, never a rebuild.
func taxRate() decimal.Decimal {
	raw := os.Getenv("POS_TAX_RATE")
	if raw == "" {
		return decimal.Zero
	}
	rate, err := utils.ParseDecimal(raw)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func SyncStatusHandler(driver *Driver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		pending, err := models.PendingChangeCount(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var oldestAt *string
		head, err := models.OldestPendingChange(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if head != nil {
			formatted := head.CreatedAt.UTC().Format(time.RFC3339)
			oldestAt = &formatted
		}

		outcomes, err := models.RecentSyncOutcomes(ctx, 20)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, SyncStatusResponse{
			PendingChanges:  pending,
			OldestPendingAt: oldestAt,
			LastError:       driver.LastError(),
			RecentOutcomes:  outcomes,
		})
	}
}

func SyncNowHandler(driver *Driver) gin.HandlerFunc {
	return func(c *gin.Context) {
		driver.Kick()
		c.JSON(http.StatusAccepted, gin.H{"status": "sync requested"})
	}
}

func SanitizeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fixed, err := SanitizeItemRefs(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, SanitizeResponse{RowsFixed: fixed})
	}
}

// TicketNumberNextHandler previews the next ticket number without reserving
// it. The number is only claimed when a ticket saves with it.
func TicketNumberNextHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		number, err := models.GenerateTicketNumber(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ticketNumber": number})
	}
}

func TicketNumberParseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		number := c.Param("number")
		parts, ok := models.ParseTicketNumber(number)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed ticket number"})
			return
		}
		c.JSON(http.StatusOK, parts)
	}
}

// HoldTicketHandler parks the open cart: projects it into ticket rows,
// assigns a ticket number when the cart has none, and persists rows plus
// queue entries in one transaction.
func HoldTicketHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req HoldTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bindErrorBody(err))
			return
		}
		if len(req.Cart.Items) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cart has no items"})
			return
		}

		ctx := c.Request.Context()

		if req.Cart.TicketNumber == "" {
			number, err := models.GenerateTicketNumber(ctx, time.Now())
			if err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			req.Cart.TicketNumber = number
		}

		crew := cart.NewCrewSession()
		for lineId, employeeIds := range req.Crew {
			crew.SetCrew(lineId, employeeIds)
		}

		roster, err := models.GetActiveEmployees(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		projector := cart.NewProjector(taxRate())
		ticket, items := projector.Forward(&req.Cart, crew, roster, models.TicketStatusParked)

		if err := models.SaveTicket(ctx, &ticket, items); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, ticket)
	}
}

func HeldTicketsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tickets, err := models.GetHeldTickets(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, tickets)
	}
}

// ReopenTicketHandler rebuilds the editable cart from a held ticket's rows,
// crew assignments included.
func ReopenTicketHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		ticket, rows, err := models.GetTicketWithItems(ctx, c.Param("id"))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		customers, err := models.GetCustomers(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		projector := cart.NewProjector(taxRate())
		reopened, crew := projector.Reverse(ticket, rows, customers)

		c.JSON(http.StatusOK, ReopenTicketResponse{
			Cart: *reopened,
			Crew: crew.Assignments(),
		})
	}
}

func TicketStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TicketStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bindErrorBody(err))
			return
		}

		status, err := models.ParseTicketStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		ticket, err := models.UpdateTicketStatus(ctx, c.Param("id"), status)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		operatorId, _ := utils.GetOperatorIdFromContext(ctx)
		operatorName, _ := utils.GetOperatorNameFromContext(ctx)
		config.GetLogger().WithFields(logrus.Fields{
			"module":        "carsync",
			"ticketId":      ticket.ID,
			"status":        ticket.Status,
			"operator_id":   operatorId,
			"operator_name": operatorName,
		}).Info("ticket status changed")

		c.JSON(http.StatusOK, ticket)
	}
}

func DeleteTicketHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := models.SoftDeleteTicket(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

func ProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := models.GetActiveProducts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func ServicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		services, err := models.GetActiveServices(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, services)
	}
}

func EmployeesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		employees, err := models.GetActiveEmployees(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, employees)
	}
}

func CustomersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		customers, err := models.GetCustomers(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, customers)
	}
}

func CreateCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewCustomer
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, bindErrorBody(err))
			return
		}
		customer, err := models.CreateCustomer(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, customer)
	}
}

// queueLimitFromQuery caps list sizes from untrusted query input.
func queueLimitFromQuery(c *gin.Context, fallback int, max int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}

func SyncOutcomesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := queueLimitFromQuery(c, 50, 500)
		outcomes, err := models.RecentSyncOutcomes(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, outcomes)
	}
}
