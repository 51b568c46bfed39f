package model

// 媒体类型
const (
	MediaTypeMovie = "movie"
	MediaTypeTV    = "tv"
)

// Movie 目录条目（TMDB 结构，电视剧会被归一到电影字段上）
type Movie struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name,omitempty"` // 电视剧
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date,omitempty"` // 电视剧
	VoteAverage  float64 `json:"vote_average"`
	GenreIDs     []int   `json:"genre_ids"`
	MediaType    string  `json:"media_type,omitempty"`
}

// DisplayTitle 优先 title，其次 name
func (m Movie) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	if m.Name != "" {
		return m.Name
	}
	return "Unknown Title"
}

// HasAnyGenre 只要命中 genres 中任意一个类型即返回 true
func (m Movie) HasAnyGenre(genres []int) bool {
	for _, id := range m.GenreIDs {
		for _, g := range genres {
			if id == g {
				return true
			}
		}
	}
	return false
}

// Video 预告片/花絮
type Video struct {
	Key      string `json:"key"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Official bool   `json:"official"`
}

// Genre 类型
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Genres 前端筛选使用的固定类型表
var Genres = []Genre{
	{ID: 28, Name: "Action"},
	{ID: 12, Name: "Adventure"},
	{ID: 16, Name: "Animation"},
	{ID: 35, Name: "Comedy"},
	{ID: 80, Name: "Crime"},
	{ID: 18, Name: "Drama"},
	{ID: 14, Name: "Fantasy"},
	{ID: 27, Name: "Horror"},
	{ID: 878, Name: "Science Fiction"},
	{ID: 53, Name: "Thriller"},
}
