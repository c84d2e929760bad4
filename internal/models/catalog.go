package models

// Problem is a textbook problem. Read-only outside the catalog seed.
type Problem struct {
	ID               uint   `gorm:"column:p_id;primaryKey;autoIncrement" json:"p_id" yaml:"p_id"`
	BookID           uint   `gorm:"column:book_id;index" json:"book_id" yaml:"book_id"`
	Code             string `gorm:"column:p_code;size:64" json:"p_code" yaml:"p_code"`
	Name             string `gorm:"column:p_name;size:255" json:"p_name" yaml:"p_name"`
	Page             int    `gorm:"column:p_page;index:idx_problem_locator" json:"p_page" yaml:"p_page"`
	NumInPage        string `gorm:"column:num_in_page;size:16;index:idx_problem_locator" json:"num_in_page" yaml:"num_in_page"`
	ImageURL         string `gorm:"column:p_img_url;size:512" json:"p_img_url" yaml:"p_img_url"`
	MainChapter      string `gorm:"column:main_chapt;size:128;index" json:"main_chapt" yaml:"main_chapt"`
	SubChapter       string `gorm:"column:sub_chapt;size:128" json:"sub_chapt" yaml:"sub_chapt"`
	ConType          string `gorm:"column:con_type;size:128" json:"con_type" yaml:"con_type"`
	Type             string `gorm:"column:p_type;size:64" json:"p_type" yaml:"p_type"`
	Level            string `gorm:"column:p_level;size:32;index" json:"p_level" yaml:"p_level"`
	Text             string `gorm:"column:p_text;type:text" json:"p_text" yaml:"p_text"`
	Answer           string `gorm:"column:answer;type:text" json:"answer" yaml:"answer"`
	Solution         string `gorm:"column:solution;type:text" json:"solution" yaml:"solution"`
	SolutionImageURL string `gorm:"column:sol_img_url;size:512" json:"sol_img_url" yaml:"sol_img_url"`
	SubCategory      string `gorm:"column:sub_cat;size:128" json:"sub_cat" yaml:"sub_cat"`
}

func (Problem) TableName() string { return "problems" }

// ProblemSummary is the subset of problem fields echoed back with every turn.
type ProblemSummary struct {
	Name        string `json:"p_name"`
	MainChapter string `json:"main_chapt"`
	SubChapter  string `json:"sub_chapt"`
	Level       string `json:"p_level"`
	Type        string `json:"p_type"`
	ConType     string `json:"con_type"`
}

func (p *Problem) Summary() ProblemSummary {
	return ProblemSummary{
		Name:        p.Name,
		MainChapter: p.MainChapter,
		SubChapter:  p.SubChapter,
		Level:       p.Level,
		Type:        p.Type,
		ConType:     p.ConType,
	}
}

// TextbookConcept is a curriculum concept a problem may exercise.
type TextbookConcept struct {
	ID          uint   `gorm:"column:con_id;primaryKey;autoIncrement" json:"con_id" yaml:"con_id"`
	ConType     string `gorm:"column:con_type;size:128;index:idx_concept_order,priority:1" json:"con_type" yaml:"con_type"`
	Name        string `gorm:"column:tb_con;size:255;index:idx_concept_order,priority:2" json:"tb_con" yaml:"tb_con"`
	SubName     string `gorm:"column:tb_sub_con;size:255;index:idx_concept_order,priority:3" json:"tb_sub_con" yaml:"tb_sub_con"`
	Description string `gorm:"column:con_description;type:text" json:"con_description" yaml:"con_description"`
}

func (TextbookConcept) TableName() string { return "textbook_concepts" }

// ProblemConcept links problems and concepts (many-to-many).
type ProblemConcept struct {
	ProblemID uint `gorm:"column:p_id;primaryKey" yaml:"p_id"`
	ConceptID uint `gorm:"column:con_id;primaryKey;index" yaml:"con_id"`
}

func (ProblemConcept) TableName() string { return "problem_concepts" }

// ProblemSimilarity ranks problems similar to a source problem.
type ProblemSimilarity struct {
	ProblemID uint `gorm:"column:p_id;primaryKey" yaml:"p_id"`
	SimilarID uint `gorm:"column:sim_p_id;primaryKey" yaml:"sim_p_id"`
	Rank      int  `gorm:"column:sim_rank;default:0" yaml:"rank"`
}

func (ProblemSimilarity) TableName() string { return "problem_similarities" }
