package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"identity-recon/internal/contact/handler/mocks"
	"identity-recon/internal/contact/models"
	dErrors "identity-recon/pkg/domain-errors"
	"identity-recon/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/contact-mocks.go -package=mocks Service
type ContactHandlerSuite struct {
	suite.Suite
}

func TestContactHandlerSuite(t *testing.T) {
	suite.Run(t, new(ContactHandlerSuite))
}

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(mockService, logger).Register(r)
	return r, mockService
}

func strPtr(v string) *string { return &v }

func (s *ContactHandlerSuite) TestHandleIdentify() {
	s.Run("returns the consolidated contact", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Consolidate(gomock.Any(), "a@x.com", "111").Return(&models.ConsolidatedView{
			PrimaryContactID:    1,
			Emails:              []string{"a@x.com", "b@x.com"},
			PhoneNumbers:        []string{"111"},
			SecondaryContactIDs: []int64{2},
		}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", map[string]any{"email": "a@x.com", "phoneNumber": "111"})
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[IdentifyResponse](s.T(), rr)
		s.Equal(int64(1), resp.Contact.PrimaryContactID)
		s.Equal([]string{"a@x.com", "b@x.com"}, resp.Contact.Emails)
		s.Equal([]int64{2}, resp.Contact.SecondaryContactIDs)
	})

	s.Run("original route and null fields", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Consolidate(gomock.Any(), "", "111").Return(&models.ConsolidatedView{
			PrimaryContactID: 7,
			PhoneNumbers:     []string{"111"},
		}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identity", map[string]any{"email": nil, "phoneNumber": "111"})
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.JSONEq(`{"contact":{"primaryContactId":7,"emails":[],"phoneNumbers":["111"],"secondaryContactIds":[]}}`, rr.Body.String())
	})

	s.Run("both fields empty is rejected before the service", func() {
		router, _ := newTestRouter(s.T())
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", map[string]any{"email": "  ", "phoneNumber": ""})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, dErrors.CodeValidation)
	})

	s.Run("empty body is rejected", func() {
		router, _ := newTestRouter(s.T())
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", nil))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, dErrors.CodeValidation)
	})

	s.Run("malformed json is a bad request", func() {
		router, _ := newTestRouter(s.T())
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", nil)
		req.Body = io.NopCloser(strings.NewReader(`{"email":`))
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, dErrors.CodeBadRequest)
	})

	s.Run("oversized email is rejected", func() {
		router, _ := newTestRouter(s.T())
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", map[string]any{"email": strings.Repeat("a", 321)})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, dErrors.CodeValidation)
	})

	s.Run("padding does not count toward the length limit", func() {
		router, svc := newTestRouter(s.T())
		email := strings.Repeat("a", 310) + "@x.com"
		svc.EXPECT().Consolidate(gomock.Any(), email, "111").Return(&models.ConsolidatedView{PrimaryContactID: 1}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", map[string]any{
			"email":       "   " + email + "   ",
			"phoneNumber": strings.Repeat(" ", 40) + "111",
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("persistence failure hides details", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Consolidate(gomock.Any(), "a@x.com", "").Return(nil,
			dErrors.Wrap(errors.New("connection refused"), dErrors.CodePersistence, "failed to reconcile contact"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", map[string]any{"email": "a@x.com"})
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, dErrors.CodePersistence)
		s.NotContains(rr.Body.String(), "connection refused")
	})
}

func (s *ContactHandlerSuite) TestHandleList() {
	router, svc := newTestRouter(s.T())
	linked := int64(1)
	svc.EXPECT().List(gomock.Any()).Return([]*models.Contact{
		{ID: 1, Email: strPtr("a@x.com"), LinkPrecedence: models.LinkPrecedencePrimary},
		{ID: 2, PhoneNumber: strPtr("111"), LinkPrecedence: models.LinkPrecedenceSecondary, LinkedID: &linked},
	}, nil)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/identity", nil))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[[]ContactResponse](s.T(), rr)
	s.Require().Len(*resp, 2)
	s.Nil((*resp)[0].PhoneNumber)
	s.Nil((*resp)[0].LinkedID)
	s.Equal("secondary", (*resp)[1].LinkPrecedence)
	s.Equal(int64(1), *(*resp)[1].LinkedID)
}

func (s *ContactHandlerSuite) TestHandleGet() {
	s.Run("returns the identity", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Get(gomock.Any(), int64(2)).Return(&models.ConsolidatedView{
			PrimaryContactID:    1,
			Emails:              []string{"a@x.com"},
			PhoneNumbers:        []string{},
			SecondaryContactIDs: []int64{2},
		}, nil)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/identity/2", nil))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[IdentifyResponse](s.T(), rr)
		s.Equal(int64(1), resp.Contact.PrimaryContactID)
	})

	s.Run("not found", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Get(gomock.Any(), int64(9)).Return(nil, dErrors.New(dErrors.CodeNotFound, "contact not found"))

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/identity/9", nil))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, dErrors.CodeNotFound)
	})

	s.Run("non-numeric id", func() {
		router, _ := newTestRouter(s.T())
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/identity/abc", nil))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, dErrors.CodeBadRequest)
	})
}
