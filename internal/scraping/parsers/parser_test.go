package parsers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotlens/backend/internal/domain"
)

func TestForURL_Dispatch(t *testing.T) {
	cases := map[string]domain.Platform{
		"https://bringatrailer.com/listing/1972-datsun-240z/": domain.PlatformBringATrailer,
		"https://www.carsandbids.com/auctions/abc/2020-gt350": domain.PlatformCarsAndBids,
		"https://collectingcars.com/for-sale/1990-bmw-m3":     domain.PlatformCollectingCars,
	}
	for raw, want := range cases {
		p, err := ForURL(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, p.Platform(), raw)
	}
}

func TestForURL_UnsupportedHost(t *testing.T) {
	_, err := ForURL("https://example.com/cars/123")
	assert.True(t, errors.Is(err, ErrUnsupportedHost))
}

func TestForPlatform(t *testing.T) {
	p, err := ForPlatform(domain.PlatformCarsAndBids)
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformCarsAndBids, p.Platform())

	_, err = ForPlatform(domain.Platform("ebay"))
	assert.Error(t, err)
}

func TestCarsAndBids_ParseCard(t *testing.T) {
	doc := docFrom(t, `<html><body>
	<li class="auction-item">
		<div class="auction-title"><a href="/auctions/9X2L/2019-ford-mustang-gt350">2019 Ford Mustang Shelby GT350</a></div>
		<span class="high-bid"><span class="bid-value">$41,000</span></span>
		<span class="num-bids">55</span>
		<p class="auction-subtitle">~21,000 Miles, 6-Speed Manual</p>
	</li>
	</body></html>`)
	c := NewCarsAndBids()

	l := c.ParseCard(doc.Find(c.CardSelector()).First())
	require.NotNil(t, l)
	assert.Equal(t, "cab-2019-ford-mustang-gt350", l.ExternalID)
	assert.Equal(t, 2019, l.Year)
	assert.Equal(t, "Ford", l.Make)
	assert.Equal(t, "Mustang", l.Model)
	require.NotNil(t, l.CurrentBid)
	assert.Equal(t, 41000.0, *l.CurrentBid)
	assert.Equal(t, 55, l.BidCount)
	require.NotNil(t, l.Mileage)
	assert.Equal(t, 21000, *l.Mileage)
	assert.Equal(t, "6-Speed Manual", l.Transmission)
}

func TestCarsAndBids_ParseDetail_QuickFacts(t *testing.T) {
	doc := docFrom(t, `<html><body>
	<h1 class="auction-title">2019 Ford Mustang Shelby GT350</h1>
	<div class="quick-facts"><dl>
		<dt>Make</dt><dd>Ford</dd>
		<dt>Model</dt><dd>Mustang Shelby GT350</dd>
		<dt>VIN</dt><dd>1fa6p8jz5k5551234</dd>
		<dt>Mileage</dt><dd>21,400</dd>
		<dt>Transmission</dt><dd>Manual (6-Speed)</dd>
		<dt>Engine</dt><dd>5.2L V8</dd>
		<dt>Exterior Color</dt><dd>Oxford White</dd>
		<dt>Interior Color</dt><dd>Black</dd>
	</dl></div>
	</body></html>`)

	d := NewCarsAndBids().ParseDetail(doc)
	assert.Equal(t, "1FA6P8JZ5K5551234", d.VIN)
	assert.Equal(t, "Mustang Shelby GT350", d.Model)
	require.NotNil(t, d.Mileage)
	assert.Equal(t, 21400, *d.Mileage)
	assert.Equal(t, domain.UnitMiles, d.MileageUnit)
	assert.Equal(t, "5.2L V8", d.Engine)
	assert.Equal(t, "Oxford White", d.ExteriorColor)
	assert.Equal(t, "Black", d.InteriorColor)
}

func TestCollectingCars_ParseCard_SoldWithKilometers(t *testing.T) {
	doc := docFrom(t, `<html><body>
	<div class="vehicle-card">
		<h3 class="card-title"><a href="/for-sale/1990-bmw-m3-e30">1990 BMW M3</a></h3>
		<span class="badge--sold">Sold</span>
		<span class="sold-price">£45,000</span>
		<time datetime="2025-05-10T17:00:00Z"></time>
		<p class="card-subtitle">98,000 km, left-hand drive</p>
	</div>
	</body></html>`)
	c := NewCollectingCars()

	l := c.ParseCard(doc.Find(c.CardSelector()).First())
	require.NotNil(t, l)
	assert.Equal(t, "cc-1990-bmw-m3-e30", l.ExternalID)
	assert.Equal(t, domain.StatusSold, l.Status)
	require.NotNil(t, l.CurrentBid)
	assert.Equal(t, 45000.0, *l.CurrentBid)
	require.NotNil(t, l.EndTime)
	require.NotNil(t, l.Mileage)
	assert.Equal(t, 98000, *l.Mileage)
	assert.Equal(t, domain.UnitKM, l.MileageUnit)
}

func TestCollectingCars_ParseDetail_SpecList(t *testing.T) {
	doc := docFrom(t, `<html><body>
	<h1 class="lot-title">1990 BMW M3</h1>
	<ul class="specs-list">
		<li>Odometer: 98,000 km</li>
		<li>VIN: wbsak0305lae34567</li>
		<li>Transmission: Manual</li>
		<li>Engine: 2.3-litre S14</li>
		<li>Exterior Colour: Alpine White</li>
	</ul>
	</body></html>`)

	d := NewCollectingCars().ParseDetail(doc)
	require.NotNil(t, d.Mileage)
	assert.Equal(t, 98000, *d.Mileage)
	assert.Equal(t, domain.UnitKM, d.MileageUnit)
	assert.Equal(t, "WBSAK0305LAE34567", d.VIN)
	assert.Equal(t, "Manual", d.Transmission)
	assert.Equal(t, "2.3-litre S14", d.Engine)
	assert.Equal(t, "Alpine White", d.ExteriorColor)
}
