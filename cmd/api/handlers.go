package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/textile-backoffice/roll-inventory/internal/application"
	"github.com/textile-backoffice/roll-inventory/pkg/api"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
	"github.com/textile-backoffice/roll-inventory/pkg/middleware"
)

func createBatchHandler(service *application.ReceiptService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.CreateBatchCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.Actor = api.Actor(c)

		batch, err := service.CreateBatch(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, batch)
	}
}

func updateBatchNotesHandler(service *application.ReceiptService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.UpdateBatchNotesCommand
		if appErr := api.BindJSON(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.BatchID = c.Param("batchId")
		cmd.Actor = api.Actor(c)

		batch, err := service.UpdateBatchNotes(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, batch)
	}
}

func createRollsHandler(service *application.ReceiptService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.CreateRollsCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.Actor = api.Actor(c)

		result, err := service.CreateRolls(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func listRollsHandler(service *application.RollQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var query application.ListRollsQuery
		if appErr := api.BindQuery(c, &query); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		rolls, err := service.ListRolls(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"rolls": rolls, "count": len(rolls)})
	}
}

func getRollHandler(service *application.RollQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		roll, err := service.GetRoll(c.Request.Context(), c.Param("rollId"))
		if err != nil {
			middleware.NewErrorResponder(c, logger.Logger).RespondWithError(err)
			return
		}
		c.JSON(http.StatusOK, roll)
	}
}

func getRollByBarcodeHandler(service *application.RollQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		roll, err := service.GetRollByBarcode(c.Request.Context(), c.Param("barcode"))
		if err != nil {
			middleware.NewErrorResponder(c, logger.Logger).RespondWithError(err)
			return
		}
		c.JSON(http.StatusOK, roll)
	}
}

func getLineageHandler(service *application.RollQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		lineage, err := service.GetLineage(c.Request.Context(), c.Param("rollId"))
		if err != nil {
			middleware.NewErrorResponder(c, logger.Logger).RespondWithError(err)
			return
		}
		c.JSON(http.StatusOK, lineage)
	}
}

func returnRollHandler(service *application.FulfillmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.ReturnRollCommand
		if appErr := api.BindJSON(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.RollID = c.Param("rollId")
		cmd.Actor = api.Actor(c)

		result, err := service.ReturnRoll(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func scrapHandler(service *application.FulfillmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.ScrapCommand
		if appErr := api.BindJSON(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.RollID = c.Param("rollId")
		cmd.Actor = api.Actor(c)

		roll, err := service.Scrap(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, roll)
	}
}

// resolveUnmappedHandler answers 200 even when some items failed; the body
// reports each item
func resolveUnmappedHandler(service *application.ResolverService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.ResolveUnmappedCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.Actor = api.Actor(c)

		result, err := service.ResolveUnmapped(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func allocateHandler(service *application.AllocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.AllocateCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.Actor = api.Actor(c)

		result, err := service.Allocate(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func deallocateHandler(service *application.AllocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.DeallocateCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.Actor = api.Actor(c)

		result, err := service.Deallocate(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func dispatchHandler(service *application.FulfillmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.DispatchCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.Actor = api.Actor(c)

		result, err := service.Dispatch(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func allocateLandedCostsHandler(service *application.LandedCostService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.AllocateLandedCostsCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.Actor = api.Actor(c)

		result, err := service.AllocateLandedCosts(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
