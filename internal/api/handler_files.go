package api

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"smartfiller-backend/internal/authz"
	"smartfiller-backend/internal/model"
	"smartfiller-backend/internal/store"
)

// UploadFile handles POST /api/machines/:id/upload. Requires the admin
// or controller machine role. The payload lands under the uploads dir
// with a generated name; the record keeps the original one.
func (h *Handler) UploadFile(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	id, ok := machineID(c)
	if !ok {
		return
	}

	mayUpload, err := h.guard.MayUploadFiles(c.Request.Context(), claims.UserID, id)
	if err != nil {
		serverError(c, err, "Server error")
		return
	}
	if !mayUpload {
		c.JSON(http.StatusForbidden, gin.H{"message": "No access to this machine"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No file uploaded"})
		return
	}

	storedName := uuid.NewString() + filepath.Ext(fileHeader.Filename)
	if err := c.SaveUploadedFile(fileHeader, filepath.Join(h.uploadsDir, storedName)); err != nil {
		serverError(c, err, "Upload failed")
		return
	}

	file := model.MachineFile{
		MachineID:    id,
		UploadedBy:   claims.UserID,
		Filename:     storedName,
		OriginalName: fileHeader.Filename,
	}
	if err := h.store.CreateMachineFile(c.Request.Context(), &file); err != nil {
		// The payload is already on disk; remove it rather than leaving
		// an unreferenced file behind.
		if rmErr := os.Remove(filepath.Join(h.uploadsDir, storedName)); rmErr != nil {
			log.Printf("Failed to remove orphaned upload %s: %v", storedName, rmErr)
		}
		serverError(c, err, "Upload failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "File uploaded", "file": file})
}

// ListFiles handles GET /api/machines/:id/files. Same collapsed denial
// as the detail view.
func (h *Handler) ListFiles(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	id, ok := machineID(c)
	if !ok {
		return
	}

	hasAccess, err := h.guard.HasMachineAccess(c.Request.Context(), claims.UserID, id)
	if err != nil {
		serverError(c, err, "Server error")
		return
	}
	if !hasAccess {
		c.JSON(http.StatusNotFound, gin.H{"message": "Machine not found or access denied"})
		return
	}

	files, err := h.store.ListMachineFiles(c.Request.Context(), id)
	if err != nil {
		serverError(c, err, "Failed to fetch files")
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

// DeleteFile handles DELETE /api/machines/:id/files/:fileId. Allowed for
// the uploader or any company admin. The record is removed first; a
// failed payload removal is recoverable orphaning, logged and ignored.
func (h *Handler) DeleteFile(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	id, ok := machineID(c)
	if !ok {
		return
	}
	fileID, err := strconv.ParseInt(c.Param("fileId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid file ID"})
		return
	}

	file, err := h.store.GetMachineFile(c.Request.Context(), id, fileID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "File not found"})
		return
	}
	if err != nil {
		serverError(c, err, "Server error")
		return
	}

	if !authz.CanDeleteFile(claims.UserID, claims.CompanyRole, file.UploadedBy) {
		c.JSON(http.StatusForbidden, gin.H{"message": "Only the uploader or a company admin can delete files."})
		return
	}

	if err := h.store.DeleteMachineFile(c.Request.Context(), fileID); err != nil {
		serverError(c, err, "Failed to delete file")
		return
	}

	if err := os.Remove(filepath.Join(h.uploadsDir, file.Filename)); err != nil {
		log.Printf("Failed to remove file payload %s: %v", file.Filename, err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "File deleted"})
}
