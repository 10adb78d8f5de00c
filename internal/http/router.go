package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/mlcompare/internal/http/handlers"
	httpMW "github.com/yungbote/mlcompare/internal/http/middleware"
	"github.com/yungbote/mlcompare/internal/observability"
	"github.com/yungbote/mlcompare/internal/platform/logger"
)

// RouterConfig wires whichever handlers a binary provides; nil handlers
// leave their routes unregistered.
type RouterConfig struct {
	ServiceName string
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string

	// MaxRequestBytes bounds multipart bodies held in memory.
	MaxRequestBytes int64

	HealthHandler *httpH.HealthHandler

	// training API
	BasePath       string
	DatasetHandler *httpH.DatasetHandler
	ModelHandler   *httpH.ModelHandler
	ResultHandler  *httpH.ResultHandler
	TrainHandler   *httpH.TrainHandler

	// console
	FormHandler  *httpH.FormHandler
	PageHandler  *httpH.PageHandler
	SecureCookie bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	r := gin.New()
	if cfg.MaxRequestBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxRequestBytes
	}
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(log))
	r.Use(httpMW.Recover(log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/" + strings.Trim(cfg.BasePath, "/"))
	{
		if cfg.DatasetHandler != nil {
			api.POST("/datasets/upload/", cfg.DatasetHandler.Upload)
			api.GET("/datasets/", cfg.DatasetHandler.List)
			api.GET("/datasets/:id/", cfg.DatasetHandler.Get)
		}
		if cfg.ModelHandler != nil {
			api.GET("/models/", cfg.ModelHandler.List)
			api.GET("/models/:id/", cfg.ModelHandler.Get)
			api.POST("/models/:id/train/", cfg.ModelHandler.Train)
		}
		if cfg.ResultHandler != nil {
			api.GET("/results/", cfg.ResultHandler.List)
			api.GET("/results/:id/", cfg.ResultHandler.Get)
			api.GET("/debug/", cfg.ResultHandler.Debug)
		}
		if cfg.TrainHandler != nil {
			api.POST("/train/", cfg.TrainHandler.Train)
		}
	}

	// Console pages
	if cfg.PageHandler != nil {
		r.GET("/", cfg.PageHandler.List)
		r.GET("/model-comparison", cfg.PageHandler.Compare)
		r.GET("/model-details/:id", cfg.PageHandler.Details)
		r.GET("/model-types", cfg.PageHandler.ModelTypes)
	}

	// Training form
	if cfg.FormHandler != nil {
		form := r.Group("/train-form")
		form.Use(httpMW.FormSession(cfg.SecureCookie))
		{
			form.GET("", cfg.FormHandler.Get)
			form.POST("/blocks", cfg.FormHandler.AddBlock)
			form.DELETE("/blocks/:index", cfg.FormHandler.RemoveBlock)
			form.PUT("/blocks/:index/model-type", cfg.FormHandler.SelectModelType)
			form.PUT("/blocks/:index/hyperparameters", cfg.FormHandler.SetHyperparameters)
			form.POST("/file", cfg.FormHandler.SelectFile)
			form.PUT("/target-columns", cfg.FormHandler.SetTargetColumns)
			form.POST("/submit", cfg.FormHandler.Submit)
			form.POST("/reset", cfg.FormHandler.Reset)
		}
	}

	if cfg.PageHandler != nil || cfg.FormHandler != nil {
		// the console has no 404 page; unknown paths land on the results list
		r.NoRoute(func(c *gin.Context) {
			c.Redirect(http.StatusFound, "/")
		})
	}
	return r
}
