package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mlcompare/internal/client"
	"github.com/yungbote/mlcompare/internal/drafts"
	"github.com/yungbote/mlcompare/internal/http/response"
	"github.com/yungbote/mlcompare/internal/hyperparams"
	"github.com/yungbote/mlcompare/internal/platform/apierr"
	"github.com/yungbote/mlcompare/internal/platform/ctxutil"
	"github.com/yungbote/mlcompare/internal/platform/logger"
	"github.com/yungbote/mlcompare/internal/trainform"
)

type FormHandler struct {
	log       *logger.Logger
	sessions  *drafts.Sessions
	submitter trainform.Submitter
}

func NewFormHandler(log *logger.Logger, sessions *drafts.Sessions, submitter trainform.Submitter) *FormHandler {
	return &FormHandler{
		log:       log.With("handler", "FormHandler"),
		sessions:  sessions,
		submitter: submitter,
	}
}

type paramView struct {
	hyperparams.Spec
	Value  any     `json:"value"`
	UIMin  float64 `json:"ui_min"`
	UIMax  float64 `json:"ui_max"`
	UIStep float64 `json:"ui_step"`
}

type blockView struct {
	Index      int         `json:"index"`
	Name       string      `json:"name"`
	ModelType  string      `json:"model_type"`
	Configured bool        `json:"configured"`
	Params     []paramView `json:"hyperparameters"`
}

type formView struct {
	Session       string                  `json:"session"`
	ModelTypes    []hyperparams.TypeInfo  `json:"model_types"`
	Blocks        []blockView             `json:"blocks"`
	FileName      string                  `json:"file_name,omitempty"`
	Columns       []trainform.Column      `json:"columns"`
	TargetColumns []string                `json:"target_columns"`
	Loading       bool                    `json:"loading"`
	Notification  *trainform.Notification `json:"notification,omitempty"`
	Results       []client.TrainingRun    `json:"results,omitempty"`
	FieldErrors   map[string]string       `json:"field_errors,omitempty"`
}

func paramViews(id hyperparams.ModelTypeID, values map[string]any) []paramView {
	specs := hyperparams.Lookup(id)
	out := make([]paramView, 0, len(specs))
	for _, s := range specs {
		pv := paramView{Spec: s, Value: values[s.Name]}
		if s.Kind == hyperparams.KindNumber {
			pv.UIMin, pv.UIMax, pv.UIStep = s.UIMin(), s.UIMax(), s.UIStep()
		}
		out = append(out, pv)
	}
	return out
}

func renderForm(session string, st trainform.State) formView {
	v := formView{
		Session:       session,
		ModelTypes:    hyperparams.Types(),
		Blocks:        make([]blockView, 0, len(st.Blocks)),
		Columns:       st.Columns,
		TargetColumns: st.TargetColumns,
		Loading:       st.Loading,
	}
	for i, b := range st.Blocks {
		v.Blocks = append(v.Blocks, blockView{
			Index:      i,
			Name:       b.Name,
			ModelType:  string(b.ModelType),
			Configured: b.Configured(),
			Params:     paramViews(b.ModelType, b.Hyperparameters),
		})
	}
	if st.File != nil {
		v.FileName = st.File.Name
	}
	return v
}

func (h *FormHandler) session(c *gin.Context) string {
	return ctxutil.FormSession(c.Request.Context())
}

func (h *FormHandler) respond(c *gin.Context, status int, st trainform.State) {
	c.JSON(status, renderForm(h.session(c), st))
}

// formError maps form errors onto statuses; anything unrecognised is a 500.
func (h *FormHandler) formError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, trainform.ErrBlockIndex):
		response.RespondError(c, http.StatusNotFound, "block_not_found", err)
	case errors.Is(err, trainform.ErrUnknownModelType),
		errors.Is(err, trainform.ErrNoModelType),
		errors.Is(err, trainform.ErrUnknownParam),
		errors.Is(err, trainform.ErrInvalidValue):
		response.RespondError(c, http.StatusBadRequest, "invalid_model_config", err)
	case errors.Is(err, trainform.ErrSubmitInProgress):
		response.RespondError(c, http.StatusConflict, "submit_in_progress", err)
	default:
		var fe *trainform.FieldError
		if errors.As(err, &fe) {
			response.RespondError(c, http.StatusBadRequest, "invalid_"+fe.Field, fe)
			return
		}
		h.log.Error("training form update failed", "session", h.session(c), "error", err)
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}

func blockIndex(c *gin.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil || i < 0 {
		response.RespondError(c, http.StatusNotFound, "block_not_found", trainform.ErrBlockIndex)
		return 0, false
	}
	return i, true
}

func (h *FormHandler) update(c *gin.Context, status int, fn func(f *trainform.Form) error) {
	st, err := h.sessions.Update(c.Request.Context(), h.session(c), fn)
	if err != nil {
		h.formError(c, err)
		return
	}
	h.respond(c, status, st)
}

// Get handles GET /train-form.
func (h *FormHandler) Get(c *gin.Context) {
	st, err := h.sessions.View(c.Request.Context(), h.session(c))
	if err != nil {
		h.formError(c, err)
		return
	}
	h.respond(c, http.StatusOK, st)
}

// AddBlock handles POST /train-form/blocks.
func (h *FormHandler) AddBlock(c *gin.Context) {
	h.update(c, http.StatusCreated, func(f *trainform.Form) error {
		f.AddBlock()
		return nil
	})
}

// RemoveBlock handles DELETE /train-form/blocks/:index.
func (h *FormHandler) RemoveBlock(c *gin.Context) {
	i, ok := blockIndex(c)
	if !ok {
		return
	}
	h.update(c, http.StatusOK, func(f *trainform.Form) error { return f.RemoveBlock(i) })
}

type modelTypeRequest struct {
	ModelType string `json:"model_type" binding:"required"`
}

// SelectModelType handles PUT /train-form/blocks/:index/model-type.
func (h *FormHandler) SelectModelType(c *gin.Context) {
	i, ok := blockIndex(c)
	if !ok {
		return
	}
	var req modelTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.update(c, http.StatusOK, func(f *trainform.Form) error { return f.SelectModelType(i, req.ModelType) })
}

// SetHyperparameters handles PUT /train-form/blocks/:index/hyperparameters
// with a {"name": value} object; all edits apply or none do.
func (h *FormHandler) SetHyperparameters(c *gin.Context) {
	i, ok := blockIndex(c)
	if !ok {
		return
	}
	var values map[string]any
	if err := c.ShouldBindJSON(&values); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.update(c, http.StatusOK, func(f *trainform.Form) error {
		for name, v := range values {
			if err := f.SetHyperparameter(i, name, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// SelectFile handles POST /train-form/file (multipart field "file").
func (h *FormHandler) SelectFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", trainform.ErrNoFile)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return
	}
	defer f.Close()
	h.update(c, http.StatusOK, func(form *trainform.Form) error { return form.SelectFile(fh.Filename, f) })
}

type targetColumnsRequest struct {
	TargetColumns []string `json:"target_columns"`
}

// SetTargetColumns handles PUT /train-form/target-columns.
func (h *FormHandler) SetTargetColumns(c *gin.Context) {
	var req targetColumnsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.update(c, http.StatusOK, func(f *trainform.Form) error {
		f.SetTargetColumns(req.TargetColumns)
		return nil
	})
}

// Reset handles POST /train-form/reset.
func (h *FormHandler) Reset(c *gin.Context) {
	st, err := h.sessions.Reset(c.Request.Context(), h.session(c))
	if err != nil {
		h.formError(c, err)
		return
	}
	h.respond(c, http.StatusOK, st)
}

// Submit handles POST /train-form/submit. The body always carries the
// user-facing notification; validation errors also name the field.
func (h *FormHandler) Submit(c *gin.Context) {
	session := h.session(c)
	st, resp, err := h.sessions.Submit(c.Request.Context(), session, h.submitter)
	note := trainform.NotificationFor(err)

	if st == nil {
		cur, viewErr := h.sessions.View(c.Request.Context(), session)
		if viewErr != nil {
			h.formError(c, viewErr)
			return
		}
		st = &cur
	}
	v := renderForm(session, *st)
	v.Notification = &note

	var fe *trainform.FieldError
	switch {
	case err == nil:
		v.Results = resp.Runs
		c.JSON(http.StatusCreated, v)
	case errors.As(err, &fe):
		v.FieldErrors = map[string]string{fe.Field: fe.Err.Error()}
		c.JSON(http.StatusBadRequest, v)
	case errors.Is(err, trainform.ErrSubmitInProgress):
		c.JSON(http.StatusConflict, v)
	case apierr.KindOf(err) != "":
		c.JSON(apierr.HTTPStatus(err), v)
	default:
		h.log.Error("training submit failed", "session", session, "error", err)
		c.JSON(http.StatusInternalServerError, v)
	}
}
