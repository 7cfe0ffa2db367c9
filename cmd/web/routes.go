package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/AdamBeresnev/op-tournaments/internal/httputil"
	"github.com/AdamBeresnev/op-tournaments/internal/middleware"
	"github.com/AdamBeresnev/op-tournaments/internal/service"
	"github.com/AdamBeresnev/op-tournaments/views"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type app struct {
	tournaments *service.TournamentService
	matches     *service.MatchService
	hub         *events.Hub
	registry    *prometheus.Registry
}

type createTournamentRequest struct {
	Name      string          `json:"name"`
	Phases    []bracket.Phase `json:"phases"`
	PrizePool int64           `json:"prize_pool"`
}

type registerRequest struct {
	Nick    string `json:"nick"`
	PartyID string `json:"party_id"`
}

type readyRequest struct {
	Ready bool `json:"ready"`
}

func urlUUID(r *http.Request, key string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, key))
}

func urlInt(r *http.Request, key string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, key))
}

// withoutSecret hides the game secret from anyone who is not playing in m.
func withoutSecret(m *bracket.Match, playerID string) *bracket.Match {
	if !m.HasPlayer(playerID) {
		m.Secret = ""
	}
	return m
}

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	r.Get("/ws/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := urlUUID(r, "id")
		if err != nil {
			httputil.BadRequest(w, "Invalid tournament ID", err)
			return
		}
		a.hub.ServeWS(w, r, id.String())
	})

	r.Post("/tournaments", func(w http.ResponseWriter, r *http.Request) {
		var req createTournamentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(w, "Invalid request body", err)
			return
		}
		t, err := a.tournaments.CreateTournament(r.Context(), service.CreateTournamentInput{
			Name:      req.Name,
			Phases:    req.Phases,
			PrizePool: req.PrizePool,
		})
		if err != nil {
			httputil.Error(w, "Failed to create tournament", err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/tournaments/%s", t.ID))
		httputil.WriteJSON(w, http.StatusCreated, t)
	})

	r.Route("/tournaments/{id}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			id, err := urlUUID(r, "id")
			if err != nil {
				httputil.BadRequest(w, "Invalid tournament ID", err)
				return
			}
			t, err := a.tournaments.GetTournament(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to get tournament", err)
				return
			}
			for i := range t.AllMatches {
				t.AllMatches[i].Secret = ""
			}
			httputil.WriteJSON(w, http.StatusOK, t)
		})

		r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
			id, err := urlUUID(r, "id")
			if err != nil {
				httputil.BadRequest(w, "Invalid tournament ID", err)
				return
			}
			t, err := a.tournaments.StartTournament(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to start tournament", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, map[string]any{"id": t.ID, "status": t.Status})
		})

		r.Post("/cancel", func(w http.ResponseWriter, r *http.Request) {
			id, err := urlUUID(r, "id")
			if err != nil {
				httputil.BadRequest(w, "Invalid tournament ID", err)
				return
			}
			t, err := a.tournaments.CancelTournament(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to cancel tournament", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, map[string]any{"id": t.ID, "status": t.Status})
		})

		r.Get("/standings", func(w http.ResponseWriter, r *http.Request) {
			id, err := urlUUID(r, "id")
			if err != nil {
				httputil.BadRequest(w, "Invalid tournament ID", err)
				return
			}
			standings, err := a.tournaments.Standings(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to get standings", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, standings)
		})

		r.Get("/phases/{phaseID}/bracket", func(w http.ResponseWriter, r *http.Request) {
			id, err := urlUUID(r, "id")
			if err != nil {
				httputil.BadRequest(w, "Invalid tournament ID", err)
				return
			}
			phaseID, err := urlInt(r, "phaseID")
			if err != nil {
				httputil.BadRequest(w, "Invalid phase ID", err)
				return
			}
			t, err := a.tournaments.GetTournament(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to get tournament", err)
				return
			}
			data, err := views.PrepareBracketData(t, phaseID)
			if err != nil {
				httputil.Error(w, "Failed to prepare bracket", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, data)
		})

		r.Get("/phases/{phaseID}/groups/{groupID}/standings", func(w http.ResponseWriter, r *http.Request) {
			id, err := urlUUID(r, "id")
			if err != nil {
				httputil.BadRequest(w, "Invalid tournament ID", err)
				return
			}
			phaseID, err := urlInt(r, "phaseID")
			if err != nil {
				httputil.BadRequest(w, "Invalid phase ID", err)
				return
			}
			groupID, err := urlInt(r, "groupID")
			if err != nil {
				httputil.BadRequest(w, "Invalid group ID", err)
				return
			}
			standings, err := a.tournaments.GroupStandings(r.Context(), id, phaseID, groupID)
			if err != nil {
				httputil.Error(w, "Failed to get group standings", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, standings)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePlayer)

			r.Post("/players", func(w http.ResponseWriter, r *http.Request) {
				id, err := urlUUID(r, "id")
				if err != nil {
					httputil.BadRequest(w, "Invalid tournament ID", err)
					return
				}
				var req registerRequest
				if r.ContentLength != 0 {
					if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
						httputil.BadRequest(w, "Invalid request body", err)
						return
					}
				}
				playerID, _ := middleware.GetPlayerIDFromContext(r.Context())
				player, err := a.tournaments.RegisterPlayer(r.Context(), id, service.RegisterPlayerInput{
					PlayerID: playerID,
					Nick:     req.Nick,
					PartyID:  req.PartyID,
				})
				if err != nil {
					httputil.Error(w, "Failed to register player", err)
					return
				}
				httputil.WriteJSON(w, http.StatusCreated, player)
			})

			r.Get("/match", func(w http.ResponseWriter, r *http.Request) {
				id, err := urlUUID(r, "id")
				if err != nil {
					httputil.BadRequest(w, "Invalid tournament ID", err)
					return
				}
				playerID, _ := middleware.GetPlayerIDFromContext(r.Context())
				m, err := a.tournaments.GetOrCreateActiveMatch(r.Context(), id, playerID)
				if err != nil {
					httputil.Error(w, "Failed to get active match", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, withoutSecret(m, playerID))
			})

			r.Route("/matches/{matchID}", func(r chi.Router) {
				r.Post("/ready", func(w http.ResponseWriter, r *http.Request) {
					tid, mid, ok := matchParams(w, r)
					if !ok {
						return
					}
					req := readyRequest{Ready: true}
					if r.ContentLength != 0 {
						if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
							httputil.BadRequest(w, "Invalid request body", err)
							return
						}
					}
					playerID, _ := middleware.GetPlayerIDFromContext(r.Context())
					m, err := a.matches.SetReady(r.Context(), tid, mid, playerID, req.Ready)
					if err != nil {
						httputil.Error(w, "Failed to set ready", err)
						return
					}
					httputil.WriteJSON(w, http.StatusOK, m)
				})

				r.Post("/checkin", func(w http.ResponseWriter, r *http.Request) {
					tid, mid, ok := matchParams(w, r)
					if !ok {
						return
					}
					playerID, _ := middleware.GetPlayerIDFromContext(r.Context())
					m, err := a.matches.CheckIn(r.Context(), tid, mid, playerID)
					if err != nil {
						httputil.Error(w, "Failed to check in", err)
						return
					}
					httputil.WriteJSON(w, http.StatusOK, m)
				})

				r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
					tid, mid, ok := matchParams(w, r)
					if !ok {
						return
					}
					playerID, _ := middleware.GetPlayerIDFromContext(r.Context())
					m, err := a.matches.StartGame(r.Context(), tid, mid)
					if err != nil {
						httputil.Error(w, "Failed to start game", err)
						return
					}
					httputil.WriteJSON(w, http.StatusOK, withoutSecret(m, playerID))
				})

				r.Post("/results", func(w http.ResponseWriter, r *http.Request) {
					tid, mid, ok := matchParams(w, r)
					if !ok {
						return
					}
					var result bracket.GameResult
					if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
						httputil.BadRequest(w, "Invalid request body", err)
						return
					}
					playerID, _ := middleware.GetPlayerIDFromContext(r.Context())
					m, err := a.matches.SubmitGameResult(r.Context(), tid, mid, result)
					if err != nil {
						httputil.Error(w, "Failed to submit game result", err)
						return
					}
					httputil.WriteJSON(w, http.StatusOK, withoutSecret(m, playerID))
				})

				r.Post("/close", func(w http.ResponseWriter, r *http.Request) {
					tid, mid, ok := matchParams(w, r)
					if !ok {
						return
					}
					playerID, _ := middleware.GetPlayerIDFromContext(r.Context())
					m, err := a.matches.CloseMatch(r.Context(), tid, mid)
					if err != nil {
						httputil.Error(w, "Failed to close match", err)
						return
					}
					httputil.WriteJSON(w, http.StatusOK, withoutSecret(m, playerID))
				})
			})
		})
	})

	return r
}

func matchParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	tid, err := urlUUID(r, "id")
	if err != nil {
		httputil.BadRequest(w, "Invalid tournament ID", err)
		return uuid.Nil, uuid.Nil, false
	}
	mid, err := urlUUID(r, "matchID")
	if err != nil {
		httputil.BadRequest(w, "Invalid match ID", err)
		return uuid.Nil, uuid.Nil, false
	}
	return tid, mid, true
}
