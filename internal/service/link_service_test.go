package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/HugPhiluu/PhilCard/internal/model"
	"github.com/HugPhiluu/PhilCard/internal/repository/mock"
	"github.com/HugPhiluu/PhilCard/internal/service"
)

type stubFavicons struct {
	name  string
	err   error
	calls int
}

func (s *stubFavicons) FetchLinkIcon(_ context.Context, _ model.Link) (string, error) {
	s.calls++
	return s.name, s.err
}

func TestLinkService_Create_AppendsAtEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mock.NewMockLinkRepository(ctrl)
	svc := service.NewLinkService(links, nil)

	links.EXPECT().NextPosition(gomock.Any()).Return(3, nil)
	links.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, link model.Link) (model.Link, error) {
		require.Equal(t, "GitHub", link.Title)
		require.Equal(t, "https://github.com/someone", link.URL)
		require.Equal(t, 3, link.Position)
		require.Equal(t, model.IconTypeNone, link.IconType)
		link.ID = 42
		return link, nil
	})

	created, err := svc.Create(context.Background(), service.LinkInput{
		Title: "  GitHub ",
		URL:   " https://github.com/someone ",
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), created.ID)
}

func TestLinkService_Create_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mock.NewMockLinkRepository(ctrl)
	svc := service.NewLinkService(links, nil)

	cases := []struct {
		name  string
		in    service.LinkInput
		field string
	}{
		{"missing title", service.LinkInput{URL: "https://example.com"}, "title"},
		{"missing url", service.LinkInput{Title: "x"}, "url"},
		{"javascript url", service.LinkInput{Title: "x", URL: "javascript:alert(1)"}, "url"},
		{"no host", service.LinkInput{Title: "x", URL: "https://"}, "url"},
		{"unknown icon type", service.LinkInput{Title: "x", URL: "https://example.com", IconType: "sparkle"}, "iconType"},
		{"emoji without name", service.LinkInput{Title: "x", URL: "https://example.com", IconType: "emoji"}, "iconName"},
		{"custom with path", service.LinkInput{Title: "x", URL: "https://example.com", IconType: "custom", IconName: "../etc/passwd"}, "iconName"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.in)
			require.ErrorIs(t, err, service.ErrInvalid)
			var verr *service.ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestLinkService_Create_AcceptsContactSchemes(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mock.NewMockLinkRepository(ctrl)
	svc := service.NewLinkService(links, nil)

	links.EXPECT().NextPosition(gomock.Any()).Return(0, nil).Times(2)
	links.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, link model.Link) (model.Link, error) {
		return link, nil
	}).Times(2)

	_, err := svc.Create(context.Background(), service.LinkInput{Title: "Mail", URL: "mailto:me@example.com", IconType: "emoji", IconName: "✉️"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), service.LinkInput{Title: "Call", URL: "tel:+15551234"})
	require.NoError(t, err)
}

func TestLinkService_Create_FetchesFavicon(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mock.NewMockLinkRepository(ctrl)
	icons := &stubFavicons{name: "example.com.png"}
	svc := service.NewLinkService(links, icons)

	links.EXPECT().NextPosition(gomock.Any()).Return(0, nil)
	links.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, link model.Link) (model.Link, error) {
		require.Empty(t, link.IconName)
		link.ID = 7
		return link, nil
	})
	links.EXPECT().UpdateIcon(gomock.Any(), int64(7), "example.com.png", gomock.Any()).Return(nil)

	created, err := svc.Create(context.Background(), service.LinkInput{
		Title:    "Example",
		URL:      "https://example.com",
		IconType: "favicon",
		IconName: "client-supplied.png",
	})
	require.NoError(t, err)
	require.Equal(t, 1, icons.calls)
	require.Equal(t, "example.com.png", created.IconName)
	require.NotNil(t, created.IconUpdatedAt)
}

func TestLinkService_Create_FaviconFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mock.NewMockLinkRepository(ctrl)
	icons := &stubFavicons{err: service.ErrFetch}
	svc := service.NewLinkService(links, icons)

	links.EXPECT().NextPosition(gomock.Any()).Return(0, nil)
	links.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, link model.Link) (model.Link, error) {
		return link, nil
	})

	created, err := svc.Create(context.Background(), service.LinkInput{Title: "Example", URL: "https://example.com", IconType: "favicon"})
	require.NoError(t, err)
	require.Empty(t, created.IconName)
}

func TestLinkService_Update_KeepsPositionAndFavicon(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mock.NewMockLinkRepository(ctrl)
	icons := &stubFavicons{name: "example.com.png"}
	svc := service.NewLinkService(links, icons)

	createdAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	existing := model.Link{ID: 9, Title: "Old", URL: "https://example.com", IconType: model.IconTypeFavicon, IconName: "example.com.png", Position: 4, CreatedAt: createdAt}

	links.EXPECT().GetByID(gomock.Any(), int64(9)).Return(existing, nil)
	links.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, link model.Link) (model.Link, error) {
		require.Equal(t, int64(9), link.ID)
		require.Equal(t, 4, link.Position)
		require.Equal(t, "New", link.Title)
		require.Equal(t, "example.com.png", link.IconName)
		require.True(t, link.CreatedAt.Equal(createdAt))
		return link, nil
	})
	links.EXPECT().UpdateIcon(gomock.Any(), int64(9), "example.com.png", gomock.Any()).Return(nil)

	updated, err := svc.Update(context.Background(), 9, service.LinkInput{Title: "New", URL: "https://example.com", IconType: "favicon"})
	require.NoError(t, err)
	require.Equal(t, "New", updated.Title)
}

func TestLinkService_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mock.NewMockLinkRepository(ctrl)
	svc := service.NewLinkService(links, nil)

	links.EXPECT().GetByID(gomock.Any(), int64(1)).Return(model.Link{}, sql.ErrNoRows).Times(2)
	links.EXPECT().Delete(gomock.Any(), int64(1)).Return(sql.ErrNoRows)

	_, err := svc.Get(context.Background(), 1)
	require.ErrorIs(t, err, service.ErrNotFound)

	_, err = svc.Update(context.Background(), 1, service.LinkInput{Title: "x", URL: "https://example.com"})
	require.ErrorIs(t, err, service.ErrNotFound)

	err = svc.Delete(context.Background(), 1)
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestLinkService_Reorder(t *testing.T) {
	current := []model.Link{{ID: 1}, {ID: 2}, {ID: 3}}

	t.Run("applies permutation", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		links := mock.NewMockLinkRepository(ctrl)
		svc := service.NewLinkService(links, nil)

		reordered := []model.Link{{ID: 3, Position: 0}, {ID: 1, Position: 1}, {ID: 2, Position: 2}}
		gomock.InOrder(
			links.EXPECT().List(gomock.Any()).Return(current, nil),
			links.EXPECT().Reorder(gomock.Any(), []int64{3, 1, 2}).Return(nil),
			links.EXPECT().List(gomock.Any()).Return(reordered, nil),
		)

		got, err := svc.Reorder(context.Background(), []int64{3, 1, 2})
		require.NoError(t, err)
		require.Equal(t, reordered, got)
	})

	for name, ids := range map[string][]int64{
		"missing id":   {1, 2},
		"unknown id":   {1, 2, 4},
		"duplicate id": {1, 1, 2},
	} {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			links := mock.NewMockLinkRepository(ctrl)
			svc := service.NewLinkService(links, nil)

			links.EXPECT().List(gomock.Any()).Return(current, nil)

			_, err := svc.Reorder(context.Background(), ids)
			require.ErrorIs(t, err, service.ErrInvalid)
		})
	}

	t.Run("concurrent delete conflicts", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		links := mock.NewMockLinkRepository(ctrl)
		svc := service.NewLinkService(links, nil)

		links.EXPECT().List(gomock.Any()).Return(current, nil)
		links.EXPECT().Reorder(gomock.Any(), gomock.Any()).Return(sql.ErrNoRows)

		_, err := svc.Reorder(context.Background(), []int64{1, 2, 3})
		require.ErrorIs(t, err, service.ErrConflict)
	})
}
