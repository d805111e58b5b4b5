package services

import (
	"log"
	"net/http"
	"os"
	"time"

	"grimoire/grimoire/ratelimit"
	"grimoire/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type Api struct {
	grimoire GrimoireService
	row      RowService
	auth     AuthService

	limiter *ratelimit.Limiter

	db *gorm.DB
}

func NewApi(db *gorm.DB) Api {
	limiter := ratelimit.NewLimiter(60, time.Minute, 30)

	return Api{
		grimoire: GrimoireService{db: db, limiter: limiter},
		row:      RowService{db: db},
		auth:     AuthService{db: db},
		limiter:  limiter,
		db:       db,
	}
}

const indexHtml = `<h1>Grimoire REST API access</h1>
<p>As a REST API, the standard CRUD (Create, Read, Update, Delete) actions are determined by request method upon the locations below.</p>
<ul><li>Create &rArr; POST</li>
<li>Read &rArr; GET</li>
<li>Update &rArr; PUT</li>
<li>Delete &rArr; DELETE</li>
</ul>
<h2>Locations:</h2>
<ul><li><tt>auth/{id}</tt>: Verify if <tt>{id}</tt> is a valid administrative (write-access) ID</li>
<li><tt>grimoire/{id}</tt>: Act upon grimoire with an ID of <tt>{id}</tt></li>
<li><tt>row/{id}</tt>: Act upon grimoire row <tt>{id}</tt></li>
<li><tt>rows/{id}</tt>: Read just the rows of grimoire <tt>{id}</tt></li>
</ul>`

func (a *Api) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHtml))
	})

	r.With(a.limiter.Middleware).Get("/auth/{key}", a.auth.Probe)

	r.Mount("/grimoire", a.grimoire.Routes())
	r.Mount("/row", a.row.Routes())
	r.Get("/rows/{key}", a.row.List)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}

func (a *Api) Shutdown() {
	a.limiter.Stop()
}
