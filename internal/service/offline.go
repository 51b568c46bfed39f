package service

import "github.com/user/movienight/internal/model"

// 没有可用预告片时使用的视频
const fallbackVideoKey = "dQw4w9WgXcQ"

// OfflineMovies 离线电影数据（无网络或未配置密钥时使用），每次返回新切片
func OfflineMovies() []model.Movie {
	return []model.Movie{
		{
			ID:           1,
			Title:        "The Dark Knight",
			Overview:     "Batman raises the stakes in his war on crime with the help of Lt. Jim Gordon and District Attorney Harvey Dent.",
			PosterPath:   "/qJ2tW6WMUDux911r6m7haRef0WH.jpg",
			BackdropPath: "/hqkIcbrOHL86UncnHIsHVcVmzue.jpg",
			ReleaseDate:  "2008-07-18",
			VoteAverage:  9.0,
			GenreIDs:     []int{28, 80, 18},
			MediaType:    model.MediaTypeMovie,
		},
		{
			ID:           2,
			Title:        "Inception",
			Overview:     "A thief who steals corporate secrets through dream-sharing technology is given the inverse task of planting an idea.",
			PosterPath:   "/9gk7adHYeDvHkCSEqAvQNLV5Uge.jpg",
			BackdropPath: "/s3TBrRGB1iav7gFOCNx3H31MoES.jpg",
			ReleaseDate:  "2010-07-16",
			VoteAverage:  8.8,
			GenreIDs:     []int{28, 878, 53},
			MediaType:    model.MediaTypeMovie,
		},
		{
			ID:           3,
			Title:        "Interstellar",
			Overview:     "A team of explorers travel through a wormhole in space in an attempt to ensure humanity's survival.",
			PosterPath:   "/gEU2QniE6E77NI6lCU6MxlNBvIx.jpg",
			BackdropPath: "/pbrkL804c8yAv3zBZR4QPWZAAn8.jpg",
			ReleaseDate:  "2014-11-07",
			VoteAverage:  8.6,
			GenreIDs:     []int{18, 878},
			MediaType:    model.MediaTypeMovie,
		},
		{
			ID:           4,
			Title:        "Parasite",
			Overview:     "A poor family schemes to become employed by a wealthy family and infiltrate their household.",
			PosterPath:   "/7IiTTgloJzvGI1TAYymCfbfl3vT.jpg",
			BackdropPath: "/TU9NIjwzjoKPwQHoHshkBcQZzr.jpg",
			ReleaseDate:  "2019-05-30",
			VoteAverage:  8.5,
			GenreIDs:     []int{35, 18, 53},
			MediaType:    model.MediaTypeMovie,
		},
		{
			ID:           5,
			Title:        "Dune",
			Overview:     "Paul Atreides leads nomadic tribes in a revolt against the galactic emperor and his father's evil nemesis.",
			PosterPath:   "/d5NXSklXo0qyIYkgV94XAgMIckC.jpg",
			BackdropPath: "/jYEW5xZkZk2WTrdbMGAPFuBqbDc.jpg",
			ReleaseDate:  "2021-10-22",
			VoteAverage:  8.0,
			GenreIDs:     []int{12, 18, 878},
			MediaType:    model.MediaTypeMovie,
		},
		{
			ID:           6,
			Title:        "Spider-Man: No Way Home",
			Overview:     "Spider-Man's identity is revealed and he asks Doctor Strange for help, but things go wrong.",
			PosterPath:   "/1g0dhYtq4irTY1GPXvft6k4YLjm.jpg",
			BackdropPath: "/14QbnygCuTO0vl7CAFmPf1fgZfV.jpg",
			ReleaseDate:  "2021-12-17",
			VoteAverage:  8.4,
			GenreIDs:     []int{28, 12, 878},
			MediaType:    model.MediaTypeMovie,
		},
	}
}

// OfflineShows 离线剧集数据，字段已归一到电影结构
func OfflineShows() []model.Movie {
	return []model.Movie{
		{
			ID:           101,
			Title:        "Breaking Bad",
			Name:         "Breaking Bad",
			Overview:     "A chemistry instructor diagnosed with cancer starts cooking methamphetamine with a former student.",
			PosterPath:   "/ggFHVNu6YYI5L9pCfOacjizRGt.jpg",
			BackdropPath: "/tsRy63Mu5cu8etL1X7ZLyf7UP1M.jpg",
			ReleaseDate:  "2008-01-20",
			FirstAirDate: "2008-01-20",
			VoteAverage:  9.5,
			GenreIDs:     []int{18, 80},
			MediaType:    model.MediaTypeTV,
		},
		{
			ID:           102,
			Title:        "Stranger Things",
			Name:         "Stranger Things",
			Overview:     "When a young boy vanishes, a small town uncovers a mystery involving secret experiments.",
			PosterPath:   "/49WJfeN0moxb9IPfGn8AIqMGskD.jpg",
			BackdropPath: "/56v2KjBlU4XaOv9rVYEQypROD7P.jpg",
			ReleaseDate:  "2016-07-15",
			FirstAirDate: "2016-07-15",
			VoteAverage:  8.7,
			GenreIDs:     []int{18, 14, 27},
			MediaType:    model.MediaTypeTV,
		},
	}
}

// OfflineVideos 离线视频列表
func OfflineVideos() []model.Video {
	return []model.Video{
		{Key: fallbackVideoKey, Site: "YouTube", Type: "Trailer", Name: "Official Trailer", Official: true},
	}
}
