package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/mlcompare/internal/http/response"
	"github.com/yungbote/mlcompare/internal/platform/blobstore"
	"github.com/yungbote/mlcompare/internal/platform/dbctx"
	"github.com/yungbote/mlcompare/internal/platform/logger"
	"github.com/yungbote/mlcompare/internal/trainapi/store"
	"github.com/yungbote/mlcompare/internal/trainapi/trainer"
)

const (
	msgNoFile      = "No file provided"
	msgOnlyCSV     = "Only CSV files are supported"
	msgNotFound    = "Resource not found"
	defaultMaxFile = 32 << 20
)

type DatasetHandler struct {
	log     *logger.Logger
	repo    store.Repo
	blobs   blobstore.Store
	maxFile int64
}

func NewDatasetHandler(log *logger.Logger, repo store.Repo, blobs blobstore.Store, maxFile int64) *DatasetHandler {
	if maxFile <= 0 {
		maxFile = defaultMaxFile
	}
	return &DatasetHandler{
		log:     log.With("handler", "DatasetHandler"),
		repo:    repo,
		blobs:   blobs,
		maxFile: maxFile,
	}
}

// Upload handles POST /datasets/upload/.
func (h *DatasetHandler) Upload(c *gin.Context) {
	name, content, status, err := readCSVUpload(c, h.maxFile)
	if err != nil {
		response.RespondMessage(c, status, err.Error())
		return
	}
	table, err := trainer.ParseCSVBytes(content)
	if err != nil {
		response.RespondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	ds, err := storeDataset(c, h.blobs, name, content, table)
	if err != nil {
		h.log.Error("store dataset file failed", "error", err)
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.repo.CreateDataset(dbctx.Context{Ctx: c.Request.Context()}, ds); err != nil {
		_ = h.blobs.Delete(c.Request.Context(), ds.StorageKey)
		h.log.Error("create dataset failed", "error", err)
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.log.Info("dataset uploaded", "dataset_id", ds.ID, "rows", ds.RowCount)
	response.RespondCreated(c, datasetView(ds))
}

// List handles GET /datasets/.
func (h *DatasetHandler) List(c *gin.Context) {
	rows, err := h.repo.ListDatasets(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, datasetView(row))
	}
	response.RespondOK(c, out)
}

// Get handles GET /datasets/:id/.
func (h *DatasetHandler) Get(c *gin.Context) {
	row, err := h.repo.GetDataset(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		response.RespondMessage(c, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		h.log.Error("get dataset failed", "dataset_id", c.Param("id"), "error", err)
		response.RespondMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.RespondOK(c, datasetView(row))
}

// readCSVUpload pulls the "file" part and enforces the .csv suffix.
func readCSVUpload(c *gin.Context, maxFile int64) (string, []byte, int, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil, http.StatusBadRequest, errors.New(msgNoFile)
		}
		return "", nil, http.StatusBadRequest, err
	}
	if !strings.HasSuffix(fh.Filename, ".csv") {
		return "", nil, http.StatusBadRequest, errors.New(msgOnlyCSV)
	}
	if fh.Size > maxFile {
		return "", nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds %d bytes", maxFile)
	}
	content, err := readPart(fh)
	if err != nil {
		return "", nil, http.StatusBadRequest, err
	}
	return fh.Filename, content, http.StatusOK, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// storeDataset writes content to blob storage and returns the unsaved row.
func storeDataset(c *gin.Context, blobs blobstore.Store, name string, content []byte, table *trainer.Table) (*store.Dataset, error) {
	id := uuid.NewString()
	cols, err := json.Marshal(table.Header)
	if err != nil {
		return nil, err
	}
	key := blobstore.DatasetKey(id, name)
	if err := blobs.Put(c.Request.Context(), key, bytes.NewReader(content)); err != nil {
		return nil, err
	}
	return &store.Dataset{
		ID:         id,
		Name:       name,
		StorageKey: key,
		Columns:    datatypes.JSON(cols),
		RowCount:   len(table.Rows),
		UploadedAt: time.Now().UTC(),
	}, nil
}
