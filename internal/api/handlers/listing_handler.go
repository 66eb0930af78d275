package handlers

import (
	"errors"
	"net/http"
	"time"

	"reverse-auction/internal/domain"
	"reverse-auction/internal/services"
	"reverse-auction/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type ListingHandler struct {
	auctionManager *services.AuctionManager
	listingRepo    domain.ListingRepository
	lotRepo        domain.LotRepository
	log            logger.Logger
}

func NewListingHandler(auctionManager *services.AuctionManager, listingRepo domain.ListingRepository,
	lotRepo domain.LotRepository, log logger.Logger) *ListingHandler {
	return &ListingHandler{
		auctionManager: auctionManager,
		listingRepo:    listingRepo,
		lotRepo:        lotRepo,
		log:            log,
	}
}

type createLotItemRequest struct {
	ProductName        string `json:"productName" validate:"required"`
	ProductDescription string `json:"productDescription"`
	Qty                int    `json:"qty" validate:"required,gt=0"`
	UOM                string `json:"uom" validate:"required"`
}

type createLotRequest struct {
	LotPrice decimal.Decimal        `json:"lotPrice" validate:"required"`
	Duration string                 `json:"duration" validate:"required"`
	Items    []createLotItemRequest `json:"items" validate:"required,min=1,dive"`
}

type createTermsRequest struct {
	PriceBasis         string `json:"priceBasis"`
	TaxesAndDuties     string `json:"taxesAndDuties"`
	Delivery           string `json:"delivery"`
	PaymentTerms       string `json:"paymentTerms"`
	WarrantyGuarantee  string `json:"warrantyGuarantee"`
	InspectionRequired bool   `json:"inspectionRequired"`
	OtherTerms         string `json:"otherTerms"`
	AwardingDecision   string `json:"awardingDecision"`
}

type createListingRequest struct {
	BuyerID                string             `json:"buyerId" validate:"required"`
	Name                   string             `json:"name" validate:"required"`
	Region                 string             `json:"region"`
	DepartmentCode         string             `json:"departmentCode"`
	BusinessUnit           string             `json:"businessUnit"`
	Currency               string             `json:"currency" validate:"required,len=3"`
	Description            string             `json:"description"`
	StartDate              string             `json:"startDate" validate:"required,datetime=2006-01-02"`
	StartTime              string             `json:"startTime" validate:"required"`
	BidDecrementPercentage float64            `json:"bidDecrementPercentage" validate:"gte=0,lte=100"`
	RequiresSupplierLogin  bool               `json:"requiresSupplierLogin"`
	SupplierIDs            []string           `json:"supplierIds"`
	Lots                   []createLotRequest `json:"lots" validate:"required,min=1,dive"`
	Terms                  createTermsRequest `json:"termsAndConditions"`
}

func (h *ListingHandler) CreateListing(c echo.Context) error {
	req := new(createListingRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid start date"})
	}

	spec := &services.ListingSpec{
		BuyerID:                req.BuyerID,
		Name:                   req.Name,
		Region:                 req.Region,
		DepartmentCode:         req.DepartmentCode,
		BusinessUnit:           req.BusinessUnit,
		Currency:               req.Currency,
		Description:            req.Description,
		StartDate:              startDate,
		StartTime:              req.StartTime,
		BidDecrementPercentage: req.BidDecrementPercentage,
		RequiresSupplierLogin:  req.RequiresSupplierLogin,
		SupplierIDs:            req.SupplierIDs,
		Terms: domain.TermsAndConditions{
			PriceBasis:         req.Terms.PriceBasis,
			TaxesAndDuties:     req.Terms.TaxesAndDuties,
			Delivery:           req.Terms.Delivery,
			PaymentTerms:       req.Terms.PaymentTerms,
			WarrantyGuarantee:  req.Terms.WarrantyGuarantee,
			InspectionRequired: req.Terms.InspectionRequired,
			OtherTerms:         req.Terms.OtherTerms,
			AwardingDecision:   req.Terms.AwardingDecision,
		},
	}
	for _, lot := range req.Lots {
		lotSpec := services.LotSpec{
			LotPrice: lot.LotPrice,
			Duration: lot.Duration,
		}
		for _, item := range lot.Items {
			lotSpec.Items = append(lotSpec.Items, services.LotItemSpec{
				ProductName:        item.ProductName,
				ProductDescription: item.ProductDescription,
				Qty:                item.Qty,
				UOM:                item.UOM,
			})
		}
		spec.Lots = append(spec.Lots, lotSpec)
	}

	listing, err := h.auctionManager.CreateListing(c.Request().Context(), spec)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateListing):
			return c.JSON(http.StatusConflict, map[string]string{"error": "a listing with this name already exists"})
		case errors.Is(err, domain.ErrInvalidSchedule):
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "first lot would already be over at the scheduled start"})
		}
		h.log.Error("Failed to create listing", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create listing"})
	}

	return c.JSON(http.StatusCreated, listingResponse(listing))
}

func (h *ListingHandler) GetListing(c echo.Context) error {
	ctx := c.Request().Context()
	listingID := c.Param("id")

	listing, err := h.listingRepo.GetListing(ctx, listingID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "listing not found"})
	} else if err != nil {
		h.log.Error("Failed to load listing", "error", err, "listing_id", listingID)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load listing"})
	}

	lots, err := h.lotRepo.GetLotsForListing(ctx, listingID)
	if err != nil {
		h.log.Error("Failed to load lots", "error", err, "listing_id", listingID)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load listing"})
	}

	resp := listingResponse(listing)
	lotViews := make([]map[string]interface{}, 0, len(lots))
	for _, lot := range lots {
		lotViews = append(lotViews, map[string]interface{}{
			"id":       lot.ID,
			"lotPrice": lot.LotPrice,
			"duration": lot.Duration,
			"status":   lot.Status,
		})
	}
	resp["lots"] = lotViews

	return c.JSON(http.StatusOK, resp)
}

func listingResponse(listing *domain.Listing) map[string]interface{} {
	resp := map[string]interface{}{
		"id":                     listing.ID,
		"name":                   listing.Name,
		"slug":                   listing.Slug,
		"buyerId":                listing.BuyerID,
		"currency":               listing.Currency,
		"status":                 listing.Status,
		"startDate":              listing.StartDate.Format("2006-01-02"),
		"startTime":              listing.StartTime,
		"bidDecrementPercentage": listing.BidDecrementPercentage,
		"requiresSupplierLogin":  listing.RequiresSupplierLogin,
		"activeLotId":            listing.ActiveLotID,
	}
	if !listing.ActiveLotEndTime.IsZero() {
		resp["activeLotEndTime"] = listing.ActiveLotEndTime
	}
	return resp
}
