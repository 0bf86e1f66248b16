package vnpay

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "SECRETKEY123"

func sampleParams() map[string]string {
	return map[string]string{
		"vnp_Version":    Version,
		"vnp_Command":    CommandPay,
		"vnp_TmnCode":    "TMN01",
		"vnp_Locale":     "vn",
		"vnp_CurrCode":   CurrencyVND,
		"vnp_TxnRef":     "12-20250101103000",
		"vnp_OrderInfo":  "Thanh toan cho ma GD:12",
		"vnp_OrderType":  OrderType,
		"vnp_Amount":     "10000000",
		"vnp_ReturnUrl":  "http://localhost:8080/payments/vnpay/return",
		"vnp_IpAddr":     "127.0.0.1",
		"vnp_CreateDate": "20250101103000",
	}
}

func TestSignData_SortedAndEncoded(t *testing.T) {
	data := SignData(map[string]string{
		"vnp_b": "x y",
		"vnp_a": "a/b:c",
		"vnp_c": "it's(ok)!*",
	})
	assert.Equal(t, "vnp_a=a%2Fb%3Ac&vnp_b=x+y&vnp_c=it's(ok)!*", data)
}

func TestSignData_ExcludesHashFields(t *testing.T) {
	p := sampleParams()
	base := SignData(p)

	p[ParamSecureHash] = "abc"
	p[ParamSecureHashType] = "HmacSHA512"
	assert.Equal(t, base, SignData(p))
}

func TestSignVerify_RoundTrip(t *testing.T) {
	p := sampleParams()
	p[ParamSecureHash] = Sign(p, testSecret)

	assert.Len(t, p[ParamSecureHash], 128)
	assert.True(t, Verify(p, testSecret))
	assert.False(t, Verify(p, "other"))
}

func TestVerify_AcceptsUppercaseHash(t *testing.T) {
	p := sampleParams()
	p[ParamSecureHash] = strings.ToUpper(Sign(p, testSecret))
	assert.True(t, Verify(p, testSecret))
}

func TestVerify_TamperedHashFails(t *testing.T) {
	p := sampleParams()
	hash := Sign(p, testSecret)

	for i := 0; i < len(hash); i += 17 {
		b := []byte(hash)
		if b[i] == 'a' {
			b[i] = 'b'
		} else {
			b[i] = 'a'
		}
		p[ParamSecureHash] = string(b)
		assert.False(t, Verify(p, testSecret), "index %d", i)
	}
}

func TestVerify_TamperedParamFails(t *testing.T) {
	p := sampleParams()
	p[ParamSecureHash] = Sign(p, testSecret)

	p["vnp_Amount"] = "20000000"
	assert.False(t, Verify(p, testSecret))
}

func TestVerify_MissingHash(t *testing.T) {
	assert.False(t, Verify(sampleParams(), testSecret))
}

func TestBuildURL_VerifiesAfterParsing(t *testing.T) {
	p := sampleParams()
	raw := BuildURL("https://sandbox.vnpayment.vn/paymentv2/vpcpay.html", p, testSecret)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := FromValues(u.Query())

	assert.Equal(t, "10000000", q["vnp_Amount"])
	assert.Equal(t, "Thanh toan cho ma GD:12", q["vnp_OrderInfo"])
	assert.True(t, Verify(q, testSecret))
}

func TestTxnRef(t *testing.T) {
	now := time.Date(2025, 1, 1, 3, 30, 0, 0, time.UTC)
	loc := LoadLocation("Asia/Ho_Chi_Minh")

	assert.Equal(t, "42-20250101103000", TxnRef("42", now, loc))
	assert.Equal(t, "42-20250101103000", TxnRef("42", now, LoadLocation("No/Such_Zone")))
}

func TestNormalizeIP(t *testing.T) {
	cases := map[string]string{
		"":                      "127.0.0.1",
		"::1":                   "127.0.0.1",
		"::ffff:10.0.0.5":       "10.0.0.5",
		"203.0.113.9, 10.0.0.1": "203.0.113.9",
		"2001:db8::1":           "127.0.0.1",
		"192.168.1.10:5555":     "192.168.1.10",
		"not-an-ip":             "127.0.0.1",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeIP(in), in)
	}
}
