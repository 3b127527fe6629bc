package model

type Course struct {
	BaseModel
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	// 价格，最小货币单位（分）
	PriceCents int64 `gorm:"not null;default:0" json:"priceCents"`
	Currency   string `gorm:"size:10;default:'usd'" json:"currency"`
	// 允许分期时的期数，0 表示只支持一次性付款
	Installments int `gorm:"default:0" json:"installments"`
	// 课程级默认测验及格分（0-100），可被测验覆盖
	PassingScore float64        `gorm:"default:60" json:"passingScore"`
	Published    bool           `gorm:"default:false" json:"published"`
	Modules      []CourseModule `gorm:"foreignKey:CourseID" json:"modules,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

type CourseModule struct {
	BaseModel
	CourseID    uint   `gorm:"index;not null" json:"courseId"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	// 必修模块按 order 顺序解锁；加分模块不参与顺序
	Order   int  `gorm:"column:module_order;default:0" json:"order"`
	IsBonus bool `gorm:"default:false" json:"isBonus"`
	Quiz    *Quiz `gorm:"foreignKey:ModuleID" json:"quiz,omitempty"`
}

func (CourseModule) TableName() string {
	return "course_modules"
}
