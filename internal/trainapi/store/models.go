package store

import (
	"time"

	"gorm.io/datatypes"
)

type Dataset struct {
	ID         string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name       string         `gorm:"column:name;not null" json:"name"`
	StorageKey string         `gorm:"column:storage_key" json:"-"`
	Columns    datatypes.JSON `gorm:"column:columns" json:"columns"`
	RowCount   int            `gorm:"column:row_count;not null;default:0" json:"row_count"`
	UploadedAt time.Time      `gorm:"column:uploaded_at;not null;index" json:"uploaded_at"`
}

func (Dataset) TableName() string { return "dataset" }

type MLModel struct {
	ID              string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	ModelType       string         `gorm:"column:model_type;not null;index" json:"model_type"`
	Hyperparameters datatypes.JSON `gorm:"column:hyperparameters" json:"hyperparameters"`
	CreatedAt       time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (MLModel) TableName() string { return "ml_model" }

type TrainingResult struct {
	ID                string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	DatasetID         string         `gorm:"type:varchar(36);column:dataset_id;not null;index" json:"dataset_id"`
	Dataset           *Dataset       `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE" json:"-"`
	ModelID           string         `gorm:"type:varchar(36);column:model_id;not null;index" json:"model_id"`
	Model             *MLModel       `gorm:"foreignKey:ModelID;constraint:OnDelete:CASCADE" json:"-"`
	Target            string         `gorm:"column:target" json:"target"`
	Metrics           datatypes.JSON `gorm:"column:metrics" json:"metrics"`
	FeatureImportance datatypes.JSON `gorm:"column:feature_importance" json:"feature_importance"`
	CreatedAt         time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (TrainingResult) TableName() string { return "training_result" }

// AllModels lists every table in migration order.
func AllModels() []any {
	return []any{&Dataset{}, &MLModel{}, &TrainingResult{}}
}
