package services

import (
	"encoding/base64"

	"github.com/sgp-fichas/fichas-api/models"
)

func (s *OrderServiceSuite) seedListing() {
	s.create(OrderInput{Client: str("Gráfica Sol"), EntryDate: str("2024-01-05"), Status: str("pendente")})
	s.create(OrderInput{Client: str("Loja Azul"), EntryDate: str("2024-01-10"), Status: str("pronto")})
	s.create(OrderInput{Client: str("SOLAR Eventos"), EntryDate: str("2024-01-15"), Status: str("em producao")})
	s.create(OrderInput{Client: str("Casa Verde"), EntryDate: str("2024-01-20"), Status: str("pronto")})
}

func clients(orders []models.OrderResponse) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.Client
	}
	return out
}

func (s *OrderServiceSuite) TestList_Filters() {
	s.seedListing()

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{"newest first", ListFilter{}, []string{"Casa Verde", "SOLAR Eventos", "Loja Azul", "Gráfica Sol"}},
		{"skip and limit", ListFilter{Skip: 1, Limit: 2}, []string{"SOLAR Eventos", "Loja Azul"}},
		{"status", ListFilter{Status: "PRONTO"}, []string{"Casa Verde", "Loja Azul"}},
		{"client substring ignores case", ListFilter{Client: "sol"}, []string{"SOLAR Eventos", "Gráfica Sol"}},
		{"date range", ListFilter{StartDate: "2024-01-06", EndDate: "2024-01-15"}, []string{"SOLAR Eventos", "Loja Azul"}},
		{"start only", ListFilter{StartDate: "2024-01-16"}, []string{"Casa Verde"}},
		{"combined", ListFilter{Status: "pronto", EndDate: "2024-01-12"}, []string{"Loja Azul"}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			orders, err := s.service.List(s.ctx, tt.filter)
			s.Require().NoError(err)
			s.Equal(tt.want, clients(orders))
		})
	}
}

func (s *OrderServiceSuite) TestList_LimitBounds() {
	for i := 0; i < 3; i++ {
		s.create(OrderInput{})
	}

	orders, err := s.service.List(s.ctx, ListFilter{Limit: MaxListLimit + 100})
	s.Require().NoError(err)
	s.Len(orders, 3)
}

func (s *OrderServiceSuite) TestList_ValidationErrors() {
	tests := []struct {
		name   string
		filter ListFilter
		field  string
	}{
		{"start after end", ListFilter{StartDate: "2024-02-01", EndDate: "2024-01-01"}, "data_inicio"},
		{"bad start", ListFilter{StartDate: "01/02/2024"}, "data_inicio"},
		{"bad end", ListFilter{EndDate: "ontem"}, "data_fim"},
		{"unknown status", ListFilter{Status: "arquivado"}, "status"},
		{"negative skip", ListFilter{Skip: -1}, "skip"},
		{"negative limit", ListFilter{Limit: -5}, "limit"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.List(s.ctx, tt.filter)
			var vErr *ValidationError
			s.Require().ErrorAs(err, &vErr)
			s.Equal(tt.field, vErr.Field)
		})
	}
}

func (s *OrderServiceSuite) TestListByStatus() {
	s.seedListing()

	orders, err := s.service.ListByStatus(s.ctx, "Pronto")
	s.Require().NoError(err)
	s.Equal([]string{"Casa Verde", "Loja Azul"}, clients(orders))

	_, err = s.service.ListByStatus(s.ctx, "arquivado")
	var vErr *ValidationError
	s.ErrorAs(err, &vErr)
}

func (s *OrderServiceSuite) TestFindByItemID() {
	explicitID := 555
	items := []models.Item{
		{Description: str("Sem id")},
		{ID: &explicitID, Description: str("Com id")},
		{Description: str("Terceiro")},
	}
	created := s.create(OrderInput{Items: &items})

	order, item, err := s.service.FindByItemID(s.ctx, 555)
	s.Require().NoError(err)
	s.Equal(created.ID, order.ID)
	s.Equal("Com id", *item.Description)

	synthesized := int(created.ID)*1000 + 2
	order, item, err = s.service.FindByItemID(s.ctx, synthesized)
	s.Require().NoError(err)
	s.Equal(created.ID, order.ID)
	s.Equal("Terceiro", *item.Description)

	// the explicit id replaces the synthesized one for position 1
	_, _, err = s.service.FindByItemID(s.ctx, int(created.ID)*1000+1)
	s.ErrorIs(err, ErrItemNotFound)
}

func (s *OrderServiceSuite) TestFindByItemID_SkipsCorruptRows() {
	corrupt := s.create(OrderInput{})
	s.Require().NoError(s.db.Model(&models.Order{}).Where("id = ?", corrupt.ID).
		UpdateColumn("items", "{not json").Error)

	items := []models.Item{{Description: str("Ok")}}
	good := s.create(OrderInput{Items: &items})

	order, _, err := s.service.FindByItemID(s.ctx, int(good.ID)*1000)
	s.Require().NoError(err)
	s.Equal(good.ID, order.ID)
}

func (s *OrderServiceSuite) TestGet_CorruptItemsDoNotFail() {
	created := s.create(OrderInput{})
	s.Require().NoError(s.db.Model(&models.Order{}).Where("id = ?", created.ID).
		UpdateColumn("items", "{not json").Error)

	loaded, err := s.service.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Empty(loaded.Items)

	orders, err := s.service.List(s.ctx, ListFilter{})
	s.Require().NoError(err)
	s.Len(orders, 1)
}

func (s *OrderServiceSuite) TestLatestOrderID() {
	latest, err := s.service.LatestOrderID(s.ctx)
	s.Require().NoError(err)
	s.Zero(latest)

	s.create(OrderInput{})
	second := s.create(OrderInput{})

	latest, err = s.service.LatestOrderID(s.ctx)
	s.Require().NoError(err)
	s.Equal(second.ID, latest)
}

func (s *OrderServiceSuite) TestItemImageURL() {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngImage)
	external := "https://cdn.example.com/arte.png"
	items := []models.Item{{Image: &dataURL}, {Image: &external}, {Description: str("Sem imagem")}}
	created := s.create(OrderInput{Items: &items})

	url, err := s.service.ItemImageURL(s.ctx, created.ID, 0)
	s.Require().NoError(err)
	s.Contains(url, ItemImageKey(created.ID, 0, ".png"))
	s.Contains(url, "mock=true")

	url, err = s.service.ItemImageURL(s.ctx, created.ID, 1)
	s.Require().NoError(err)
	s.Equal(external, url)

	_, err = s.service.ItemImageURL(s.ctx, created.ID, 2)
	s.ErrorIs(err, ErrImageNotFound)

	_, err = s.service.ItemImageURL(s.ctx, created.ID, 3)
	s.ErrorIs(err, ErrItemNotFound)

	_, err = s.service.ItemImageURL(s.ctx, created.ID+1, 0)
	s.ErrorIs(err, ErrOrderNotFound)
}
