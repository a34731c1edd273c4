package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smartfiller-backend/internal/authz"
	"smartfiller-backend/internal/model"
	"smartfiller-backend/internal/notification"
	"smartfiller-backend/internal/store"
)

func machineID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid machine ID"})
		return 0, false
	}
	return id, true
}

type createMachineRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// CreateMachine handles POST /api/machines. Company admins only; the
// creator is granted the admin machine role atomically with the insert.
func (h *Handler) CreateMachine(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	if !authz.CanCreateMachine(claims.CompanyRole) {
		c.JSON(http.StatusForbidden, gin.H{"message": "Only company admins can add machines."})
		return
	}

	var req createMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	machine := model.Machine{
		CompanyID:   claims.CompanyID,
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		CreatedBy:   claims.UserID,
	}
	if err := h.store.CreateMachine(c.Request.Context(), &machine); err != nil {
		serverError(c, err, "Server error creating machine")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Machine created", "machine": machine})
}

// ListMachines handles GET /api/machines, scoped to the caller's access
// rows. Company role grants no blanket visibility.
func (h *Handler) ListMachines(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	machines, err := h.store.ListAccessibleMachines(c.Request.Context(), claims.UserID)
	if err != nil {
		serverError(c, err, "Failed to fetch machines")
		return
	}
	if machines == nil {
		machines = []model.Machine{}
	}

	c.JSON(http.StatusOK, gin.H{"machines": machines})
}

// GetMachineDetail handles GET /api/machines/:id. A nonexistent machine
// and a denied one produce the same response.
func (h *Handler) GetMachineDetail(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	id, ok := machineID(c)
	if !ok {
		return
	}

	detail, err := h.store.GetMachineDetail(c.Request.Context(), id, claims.UserID)
	if errors.Is(err, store.ErrAccessDenied) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Machine not found or access denied"})
		return
	}
	if err != nil {
		serverError(c, err, "Error fetching machine")
		return
	}

	c.JSON(http.StatusOK, detail)
}

type updateStatusRequest struct {
	Status model.MachineStatus `json:"status" binding:"required"`
}

// UpdateMachineStatus handles PUT /api/machines/:id/status. Requires the
// admin machine role on that specific machine, not a company role.
func (h *Handler) UpdateMachineStatus(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	id, ok := machineID(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid status"})
		return
	}

	isAdmin, err := h.guard.IsMachineAdmin(c.Request.Context(), claims.UserID, id)
	if err != nil {
		serverError(c, err, "Server error")
		return
	}
	if !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"message": "Only machine admins can update status."})
		return
	}

	if err := h.store.UpdateMachineStatus(c.Request.Context(), id, req.Status); err != nil {
		serverError(c, err, "Failed to update status")
		return
	}

	if h.notifier != nil {
		h.notifier.Dispatch(notification.StatusChange{MachineID: id, Status: req.Status})
	}

	c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
}

type assignUserRequest struct {
	UserID int64      `json:"userId" binding:"required"`
	Role   model.Role `json:"role" binding:"required"`
}

// AssignUser handles POST /api/machines/:id/assign-user. Upsert
// semantics: reassigning overwrites the existing role. The admin machine
// role is never grantable here; only the creator path produces it.
func (h *Handler) AssignUser(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	id, ok := machineID(c)
	if !ok {
		return
	}

	var req assignUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if !req.Role.Assignable() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot assign admin role to users."})
		return
	}

	isAdmin, err := h.guard.IsMachineAdmin(c.Request.Context(), claims.UserID, id)
	if err != nil {
		serverError(c, err, "Server error")
		return
	}
	if !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"message": "Only machine admins can assign users."})
		return
	}

	if err := h.store.AssignMachineRole(c.Request.Context(), id, req.UserID, req.Role); err != nil {
		if errors.Is(err, store.ErrInvalidRole) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot assign admin role to users."})
			return
		}
		serverError(c, err, "Failed to assign user to machine")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User assigned to machine successfully."})
}

type logRunRequest struct {
	Description    string  `json:"description" binding:"required"`
	OperatorName   *string `json:"operatorName"`
	SelectedUserID *int64  `json:"selectedUserId"`
}

// LogRun handles POST /api/machines/:id/run. The caller needs at least
// one access row on the machine; attribution goes to the selected user
// or the free-text operator name.
func (h *Handler) LogRun(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	id, ok := machineID(c)
	if !ok {
		return
	}

	var req logRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	mayLog, err := h.guard.MayLogRun(c.Request.Context(), claims.UserID, id)
	if err != nil {
		serverError(c, err, "Server error")
		return
	}
	if !mayLog {
		c.JSON(http.StatusForbidden, gin.H{"message": "No access to this machine"})
		return
	}

	run := model.Run{
		MachineID:    id,
		UserID:       req.SelectedUserID,
		OperatorName: req.OperatorName,
		Description:  req.Description,
	}
	if err := h.store.LogRun(c.Request.Context(), &run); err != nil {
		serverError(c, err, "Failed to log run")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Run logged", "run": run})
}
