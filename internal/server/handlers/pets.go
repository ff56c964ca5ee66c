package handlers

import (
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"git.home.luguber.info/inful/feeder/internal/camera"
	"git.home.luguber.info/inful/feeder/internal/classifier"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/logfields"
	"git.home.luguber.info/inful/feeder/internal/profile"
	"git.home.luguber.info/inful/feeder/internal/server/responses"
)

const maxPhotoBytes = 10 << 20

// PetHandlers register subjects: a photo is classified to obtain its
// category, then the profile is saved under that category.
type PetHandlers struct {
	profiles     profile.Store
	classifier   classifier.Classifier
	labels       *classifier.Labels
	accept       classifier.Range
	errorAdapter *errors.HTTPErrorAdapter
}

// NewPetHandlers creates the registration handlers. c may be nil when no
// classifier is configured.
func NewPetHandlers(profiles profile.Store, c classifier.Classifier, labels *classifier.Labels, accept classifier.Range) *PetHandlers {
	return &PetHandlers{
		profiles:     profiles,
		classifier:   c,
		labels:       labels,
		accept:       accept,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleAnalyzePhoto classifies the multipart "photo" upload.
func (h *PetHandlers) HandleAnalyzePhoto(w http.ResponseWriter, r *http.Request) {
	fail := func(err error) {
		h.logFailure(r, err)
		msg := err.Error()
		if c, ok := errors.AsClassified(err); ok {
			msg = c.Message()
		}
		respond(w, r, h.errorAdapter, h.errorAdapter.StatusCodeFor(err), responses.AnalyzeResponse{Msg: msg})
	}

	if h.classifier == nil {
		fail(errors.ClassifierError("no classifier configured").Build())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	file, header, err := r.FormFile("photo")
	if err != nil {
		fail(errors.ValidationError("no photo uploaded").WithCause(err).Build())
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		fail(errors.ValidationError("photo could not be read").WithCause(err).Build())
		return
	}

	res, err := h.classifier.Classify(r.Context(), camera.Frame{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		At:          time.Now(),
		Source:      "upload",
	})
	if err != nil {
		fail(err)
		return
	}

	name := res.Label
	if name == "" {
		name = h.labels.Name(res.CategoryID)
	}
	respond(w, r, h.errorAdapter, http.StatusOK, responses.AnalyzeResponse{
		Success:   true,
		BreedID:   res.CategoryID,
		BreedName: name,
		IsDog:     h.accept.Contains(res.CategoryID),
		Score:     res.Confidence,
	})
}

// HandleSavePet stores the form fields name, weight, breed_id and breed_name.
func (h *PetHandlers) HandleSavePet(w http.ResponseWriter, r *http.Request) {
	fail := func(err error) {
		h.logFailure(r, err)
		msg := err.Error()
		if c, ok := errors.AsClassified(err); ok {
			msg = c.Message()
		}
		respond(w, r, h.errorAdapter, h.errorAdapter.StatusCodeFor(err), responses.SaveResponse{Msg: msg})
	}

	if err := r.ParseMultipartForm(1 << 20); err != nil && !stderrors.Is(err, http.ErrNotMultipart) {
		fail(errors.ValidationError("invalid form body").WithCause(err).Build())
		return
	}
	weight, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("weight")), 64)
	if err != nil {
		fail(errors.ValidationError("weight must be a number").WithContext("field", "weight").Build())
		return
	}
	category, err := strconv.Atoi(strings.TrimSpace(r.FormValue("breed_id")))
	if err != nil {
		fail(errors.ValidationError("breed id must be an integer").WithContext("field", "breed_id").Build())
		return
	}

	p, err := h.profiles.Save(r.Context(), profile.Registration{
		Name:     r.FormValue("name"),
		Weight:   weight,
		Category: category,
		Breed:    r.FormValue("breed_name"),
	})
	if err != nil {
		fail(err)
		return
	}
	slog.Info("Pet profile saved", logfields.Subject(p.Name), logfields.Category(p.Category), logfields.TargetKG(p.Target))
	respond(w, r, h.errorAdapter, http.StatusOK, responses.SaveResponse{Success: true, Pet: &p})
}

// HandleListPets lists every registered profile.
func (h *PetHandlers) HandleListPets(w http.ResponseWriter, r *http.Request) {
	pets, err := h.profiles.List(r.Context())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if pets == nil {
		pets = []profile.Profile{}
	}
	respond(w, r, h.errorAdapter, http.StatusOK, responses.PetsResponse{Pets: pets, Count: len(pets)})
}

// HandleDeletePet removes the profile registered under {category}.
func (h *PetHandlers) HandleDeletePet(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["category"]
	category, err := strconv.Atoi(raw)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, errors.ValidationError("category must be an integer").
			WithContext("category", raw).Build())
		return
	}
	if err := h.profiles.Delete(r.Context(), category); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PetHandlers) logFailure(r *http.Request, err error) {
	if errors.HasCategory(err, errors.CategoryValidation) {
		slog.Debug("Rejected pet request", logfields.Path(r.URL.Path), logfields.Error(err))
		return
	}
	slog.Warn("Pet request failed", logfields.Path(r.URL.Path), logfields.Error(err))
}
