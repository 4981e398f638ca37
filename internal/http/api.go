package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"property-registry/internal/domain"
	"property-registry/internal/service"
	"property-registry/internal/storage"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	registry  service.RegistryService
	users     service.UserService
	storage   storage.Service
	bucket    string
	keyPrefix string
	jwtSecret string
	tokenTTL  time.Duration
	logger    *logrus.Logger
}

func NewHandler(registry service.RegistryService, users service.UserService, store storage.Service, bucket, keyPrefix, jwtSecret string, tokenTTL time.Duration, logger *logrus.Logger) *Handler {
	return &Handler{
		registry:  registry,
		users:     users,
		storage:   store,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/auth/register", h.register)
		api.POST("/auth/login", h.login)
		api.POST("/metadata/verify", h.verifyMetadata)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		authed := api.Group("", authMiddleware(h.jwtSecret))
		{
			authed.GET("/users/me", h.me)
			authed.POST("/users/me/deposit", h.deposit)
			authed.POST("/properties", h.mintProperty)
			authed.GET("/properties", h.listProperties)
			authed.GET("/properties/:id", h.getProperty)
			authed.POST("/properties/:id/exchange", h.exchangeProperty)
			authed.POST("/properties/:id/upgrade", h.upgradeProperty)
			authed.POST("/properties/:id/list", h.listForSale)
			authed.POST("/properties/:id/buy", h.buyProperty)
			authed.GET("/storage/objects", h.listObjects)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type registerRequest struct {
	Username       string `json:"username" binding:"required"`
	Password       string `json:"password" binding:"required"`
	RegisterSecret string `json:"register_secret"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password, req.RegisterSecret)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, service.ErrInvalidRegistrationPassword):
			status = http.StatusForbidden
		case errors.Is(err, domain.ErrUserAlreadyExists):
			status = http.StatusConflict
		case errors.Is(err, domain.ErrStorageUnavailable):
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, userToResponse(user))
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	token, err := issueToken(h.jwtSecret, user.ID, h.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  userToResponse(user),
	})
}

func (h *Handler) me(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, userToResponse(user))
}

type depositRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

func (h *Handler) deposit(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Deposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, userToResponse(user))
}

type metadataRequest struct {
	Name         string `json:"name" binding:"required"`
	PropertyType string `json:"property_type" binding:"required"`
	Value        uint64 `json:"value"`
	ContentHash  string `json:"content_hash" binding:"required"`
}

func (r metadataRequest) toDomain() domain.Metadata {
	return domain.Metadata{
		Name:         r.Name,
		PropertyType: domain.PropertyType(r.PropertyType),
		Value:        r.Value,
		ContentHash:  r.ContentHash,
	}
}

func (h *Handler) verifyMetadata(c *gin.Context) {
	var req metadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.registry.VerifyMetadata(req.toDomain()); err != nil {
		c.JSON(statusForError(err), gin.H{"valid": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *Handler) mintProperty(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req metadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	property, err := h.registry.MintProperty(c.Request.Context(), userID, req.toDomain(), time.Now().Unix())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"property": propertyToResponse(*property)}
	if warning := h.archiveMetadata(c, property); warning != "" {
		resp["warnings"] = []string{warning}
	}
	c.JSON(http.StatusCreated, resp)
}

// archiveMetadata mirrors the minted metadata into object storage.
// Best-effort: the mint already committed, so a failed upload is only a
// warning.
func (h *Handler) archiveMetadata(c *gin.Context, property *domain.Property) string {
	if h.storage == nil || h.bucket == "" {
		return ""
	}

	doc, err := json.Marshal(propertyToResponse(*property))
	if err != nil {
		return "archive metadata: " + err.Error()
	}

	location, err := h.storage.PutDocument(c.Request.Context(), property.ID+".json", doc, storage.UploadOptions{
		Bucket:    h.bucket,
		KeyPrefix: h.keyPrefix,
	})
	if err != nil {
		h.logger.Warnf("archive metadata for %s: %v", property.ID, err)
		return "archive metadata: " + err.Error()
	}
	h.logger.Debugf("archived metadata for %s at %s", property.ID, location)
	return ""
}

func (h *Handler) listProperties(c *gin.Context) {
	if ownerParam := c.Query("owner"); ownerParam != "" {
		ownerID, err := strconv.ParseInt(ownerParam, 10, 64)
		if err != nil || ownerID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner id"})
			return
		}
		properties, err := h.registry.ListByOwner(c.Request.Context(), ownerID)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, propertiesToResponse(properties))
		return
	}

	forSale, err := strconv.ParseBool(c.DefaultQuery("for_sale", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag for_sale"})
		return
	}
	if !forSale {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner or for_sale=true is required"})
		return
	}

	properties, err := h.registry.ListOnMarket(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, propertiesToResponse(properties))
}

func (h *Handler) getProperty(c *gin.Context) {
	property, err := h.registry.GetProperty(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, propertyToResponse(*property))
}

type exchangeRequest struct {
	ReceiverID int64 `json:"receiver_id" binding:"required"`
}

func (h *Handler) exchangeProperty(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	property, err := h.registry.ExchangeProperty(c.Request.Context(), userID, req.ReceiverID, c.Param("id"), time.Now().Unix())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, propertyToResponse(*property))
}

type upgradeRequest struct {
	NewType string `json:"new_type" binding:"required"`
}

func (h *Handler) upgradeProperty(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req upgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	property, err := h.registry.UpgradeProperty(c.Request.Context(), userID, c.Param("id"), domain.PropertyType(req.NewType), time.Now().Unix())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, propertyToResponse(*property))
}

type listForSaleRequest struct {
	Price uint64 `json:"price" binding:"required"`
}

func (h *Handler) listForSale(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req listForSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	property, err := h.registry.ListForSale(c.Request.Context(), userID, c.Param("id"), req.Price)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, propertyToResponse(*property))
}

func (h *Handler) buyProperty(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	property, err := h.registry.BuyProperty(c.Request.Context(), userID, c.Param("id"), time.Now().Unix())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, propertyToResponse(*property))
}

func (h *Handler) listObjects(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage service not configured"})
		return
	}

	prefix := c.DefaultQuery("prefix", h.keyPrefix)
	objects, err := h.storage.ListObjects(c.Request.Context(), h.bucket, prefix)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

// statusForError maps the registry error taxonomy to HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrThrottled), errors.Is(err, domain.ErrPenaltyLockActive):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrMaxPropertiesReached),
		errors.Is(err, domain.ErrNotForSale),
		errors.Is(err, domain.ErrTransferHistoryFull):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidContentHash),
		errors.Is(err, domain.ErrInvalidUpgradePath),
		errors.Is(err, domain.ErrArithmeticOverflow):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrPropertyNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type UserResponse struct {
	ID            int64    `json:"id"`
	Username      string   `json:"username"`
	Balance       uint64   `json:"balance"`
	Properties    []string `json:"properties"`
	LastActionAt  int64    `json:"last_action_at"`
	ActionCount   uint64   `json:"action_count"`
	PenaltyActive bool     `json:"penalty_active"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

type PropertyResponse struct {
	ID             string  `json:"id"`
	OwnerID        int64   `json:"owner_id"`
	Name           string  `json:"name"`
	PropertyType   string  `json:"property_type"`
	Value          uint64  `json:"value"`
	ContentHash    string  `json:"content_hash"`
	CreatedAt      int64   `json:"created_at"`
	LastTransferAt int64   `json:"last_transfer_at"`
	PreviousOwners []int64 `json:"previous_owners"`
	ForSale        bool    `json:"for_sale"`
	Price          uint64  `json:"price,omitempty"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func userToResponse(user *domain.User) UserResponse {
	properties := user.Properties
	if properties == nil {
		properties = []string{}
	}
	return UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Balance:       user.Balance,
		Properties:    properties,
		LastActionAt:  user.LastActionAt,
		ActionCount:   user.ActionCount,
		PenaltyActive: user.PenaltyActive,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     user.UpdatedAt.Format(time.RFC3339),
	}
}

func propertyToResponse(property domain.Property) PropertyResponse {
	owners := property.PreviousOwners
	if owners == nil {
		owners = []int64{}
	}
	return PropertyResponse{
		ID:             property.ID,
		OwnerID:        property.OwnerID,
		Name:           property.Metadata.Name,
		PropertyType:   string(property.Metadata.PropertyType),
		Value:          property.Metadata.Value,
		ContentHash:    property.Metadata.ContentHash,
		CreatedAt:      property.CreatedAt,
		LastTransferAt: property.LastTransferAt,
		PreviousOwners: owners,
		ForSale:        property.ForSale,
		Price:          property.Price,
	}
}

func propertiesToResponse(properties []domain.Property) []PropertyResponse {
	resp := make([]PropertyResponse, len(properties))
	for i := range properties {
		resp[i] = propertyToResponse(properties[i])
	}
	return resp
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
