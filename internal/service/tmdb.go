package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"github.com/user/movienight/internal/config"
	"github.com/user/movienight/internal/model"
	"github.com/user/movienight/internal/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	tmdbLanguage     = "en-US"
	imageBaseURL     = "https://image.tmdb.org/t/p"
	youtubeEmbedURL  = "https://www.youtube.com/embed/"
	posterFallback   = "/placeholder-movie.jpg"
	backdropFallback = "/placeholder-backdrop.jpg"
	searchCacheSize  = 512
)

// 首页分类与 TMDB 路径
var categoryPaths = map[string]string{
	"trending":    "/trending/movie/day",
	"popular":     "/movie/popular",
	"now_playing": "/movie/now_playing",
}

type tmdbPage struct {
	Results []model.Movie `json:"results"`
}

type tmdbVideos struct {
	Results []model.Video `json:"results"`
}

// CatalogService TMDB 目录查询，失败时回退离线数据
type CatalogService struct {
	apiKey     string
	baseURL    string
	client     *utils.HTTPClient
	limiter    *rate.Limiter
	group      singleflight.Group
	categories *cache.Cache
	searches   *utils.SearchCache[[]model.Movie]
}

// NewCatalogService 创建目录服务，httpClient 为 nil 时使用默认客户端
func NewCatalogService(cfg *config.Config, httpClient *http.Client) *CatalogService {
	limit := rate.Inf
	burst := 1
	if cfg.CatalogRateLimit > 0 {
		limit = rate.Limit(cfg.CatalogRateLimit)
		if b := int(cfg.CatalogRateLimit); b > 1 {
			burst = b
		}
	}
	ttl := cfg.CatalogCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &CatalogService{
		apiKey:     strings.TrimSpace(cfg.TMDBAPIKey),
		baseURL:    strings.TrimRight(cfg.TMDBBaseURL, "/"),
		client:     utils.NewHTTPClient(httpClient),
		limiter:    rate.NewLimiter(limit, burst),
		categories: cache.New(ttl, 2*ttl),
		searches:   utils.NewSearchCache[[]model.Movie](searchCacheSize, ttl),
	}
}

// FetchByCategory 首页分类列表
func (s *CatalogService) FetchByCategory(ctx context.Context, category string) ([]model.Movie, error) {
	path, ok := categoryPaths[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCategory, category)
	}

	if cached, found := s.categories.Get(category); found {
		return cached.([]model.Movie), nil
	}

	// 同一分类的并发请求合并为一次
	val, err, _ := s.group.Do("category:"+category, func() (interface{}, error) {
		var page tmdbPage
		if err := s.makeRequest(ctx, "category", path, nil, &page); err != nil {
			return nil, err
		}
		movies := tagMediaType(page.Results, model.MediaTypeMovie)
		s.categories.Set(category, movies, cache.DefaultExpiration)
		return movies, nil
	})
	if err != nil {
		log.Printf("[Catalog] 获取分类 %s 失败，使用离线数据: %v", category, err)
		catalogFallbacks.WithLabelValues("category").Inc()
		return OfflineMovies(), nil
	}
	return val.([]model.Movie), nil
}

// Search 同时搜索电影和剧集，再按媒体类型与类型筛选
func (s *CatalogService) Search(ctx context.Context, query, mediaType string, genres []int) ([]model.Movie, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Movie{}, nil
	}

	if mediaType == "" {
		mediaType = "all"
	}
	if mediaType != "all" && mediaType != model.MediaTypeMovie && mediaType != model.MediaTypeTV {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMediaType, mediaType)
	}

	key := strings.ToLower(query)
	if cached, ok := s.searches.Get(key); ok {
		return FilterMovies(cached, mediaType, genres), nil
	}

	var movies, shows []model.Movie
	var movieFallback, showFallback bool
	params := url.Values{"query": {query}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var page tmdbPage
		if err := s.makeRequest(gctx, "search_movie", "/search/movie", params, &page); err != nil {
			log.Printf("[Catalog] 搜索电影失败，使用离线数据: %v", err)
			catalogFallbacks.WithLabelValues("search_movie").Inc()
			movies = OfflineMovies()
			movieFallback = true
			return nil
		}
		movies = tagMediaType(page.Results, model.MediaTypeMovie)
		return nil
	})
	g.Go(func() error {
		var page tmdbPage
		if err := s.makeRequest(gctx, "search_tv", "/search/tv", params, &page); err != nil {
			log.Printf("[Catalog] 搜索剧集失败，使用离线数据: %v", err)
			catalogFallbacks.WithLabelValues("search_tv").Inc()
			shows = OfflineShows()
			showFallback = true
			return nil
		}
		shows = normalizeShows(page.Results)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]model.Movie, 0, len(movies)+len(shows))
	results = append(results, movies...)
	results = append(results, shows...)
	if !movieFallback && !showFallback {
		s.searches.Set(key, results)
	}
	return FilterMovies(results, mediaType, genres), nil
}

// FilterMovies 按媒体类型（all/movie/tv）和类型交集筛选，genres 为空时不筛
func FilterMovies(movies []model.Movie, mediaType string, genres []int) []model.Movie {
	out := make([]model.Movie, 0, len(movies))
	for _, m := range movies {
		if mediaType != "" && mediaType != "all" && m.MediaType != mediaType {
			continue
		}
		if len(genres) > 0 && !m.HasAnyGenre(genres) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Videos 获取视频列表
func (s *CatalogService) Videos(ctx context.Context, id int, mediaType string) ([]model.Video, error) {
	if mediaType != model.MediaTypeMovie && mediaType != model.MediaTypeTV {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMediaType, mediaType)
	}

	var videos tmdbVideos
	path := fmt.Sprintf("/%s/%d/videos", mediaType, id)
	if err := s.makeRequest(ctx, "videos", path, nil, &videos); err != nil {
		log.Printf("[Catalog] 获取视频失败 (%s/%d)，使用离线数据: %v", mediaType, id, err)
		catalogFallbacks.WithLabelValues("videos").Inc()
		return OfflineVideos(), nil
	}
	return videos.Results, nil
}

// TrailerURL 预告片嵌入地址
func (s *CatalogService) TrailerURL(ctx context.Context, id int, mediaType string) (string, error) {
	videos, err := s.Videos(ctx, id, mediaType)
	if err != nil {
		return "", err
	}
	return youtubeEmbedURL + SelectTrailer(videos), nil
}

// SelectTrailer 官方预告 > 预告 > 先导 > 任意 YouTube 视频 > 默认视频
func SelectTrailer(videos []model.Video) string {
	var trailer, teaser, anyYouTube string
	for _, v := range videos {
		if v.Site != "YouTube" || v.Key == "" {
			continue
		}
		switch {
		case v.Type == "Trailer" && v.Official:
			return v.Key
		case v.Type == "Trailer" && trailer == "":
			trailer = v.Key
		case v.Type == "Teaser" && teaser == "":
			teaser = v.Key
		}
		if anyYouTube == "" {
			anyYouTube = v.Key
		}
	}

	switch {
	case trailer != "":
		return trailer
	case teaser != "":
		return teaser
	case anyYouTube != "":
		return anyYouTube
	}
	return fallbackVideoKey
}

// PosterURL 海报地址
func PosterURL(path string) string {
	if path == "" {
		return posterFallback
	}
	return imageBaseURL + "/w500" + path
}

// BackdropURL 背景图地址
func BackdropURL(path string) string {
	if path == "" {
		return backdropFallback
	}
	return imageBaseURL + "/w1280" + path
}

// makeRequest 请求 TMDB；Bearer 被拒时换用 api_key 重试一次
func (s *CatalogService) makeRequest(ctx context.Context, kind, path string, params url.Values, target interface{}) error {
	if s.apiKey == "" {
		return ErrNoCredential
	}

	bearer := looksLikeSignedToken(s.apiKey)
	err := s.do(ctx, kind, path, params, bearer, target)
	if bearer && errors.Is(err, ErrUnauthorized) {
		log.Printf("[Catalog] Bearer 认证被拒，改用 api_key 重试: %s", path)
		err = s.do(ctx, kind, path, params, false, target)
	}
	return err
}

func (s *CatalogService) do(ctx context.Context, kind, path string, params url.Values, bearer bool, target interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("language", tmdbLanguage)
	if !bearer {
		query.Set("api_key", s.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	if bearer {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		catalogRequests.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		catalogRequests.WithLabelValues(kind, "unauthorized").Inc()
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		catalogRequests.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	if err := utils.DecodeJSON(resp, target); err != nil {
		catalogRequests.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	catalogRequests.WithLabelValues(kind, "ok").Inc()
	return nil
}

// looksLikeSignedToken TMDB 的读访问令牌是 JWT，普通 api_key 是 32 位十六进制
func looksLikeSignedToken(key string) bool {
	if !strings.HasPrefix(key, "eyJ") {
		return false
	}
	_, _, err := jwt.NewParser().ParseUnverified(key, jwt.MapClaims{})
	return err == nil
}

func tagMediaType(movies []model.Movie, mediaType string) []model.Movie {
	out := make([]model.Movie, len(movies))
	for i, m := range movies {
		m.MediaType = mediaType
		out[i] = m
	}
	return out
}

func normalizeShows(shows []model.Movie) []model.Movie {
	out := make([]model.Movie, len(shows))
	for i, m := range shows {
		m.Title = m.Name
		m.ReleaseDate = m.FirstAirDate
		m.MediaType = model.MediaTypeTV
		out[i] = m
	}
	return out
}
