// Package vnpay はVNPAYのクエリ署名と検証。
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	Version     = "2.1.0"
	CommandPay  = "pay"
	CurrencyVND = "VND"
	OrderType   = "other"

	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"

	timeLayout = "20060102150405"
)

// VNPAYの署名対象はencodeURIComponent相当（スペースは+）
var unreserved = strings.NewReplacer(
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encode(s string) string {
	return unreserved.Replace(url.QueryEscape(s))
}

// 署名対象の文字列。キーは昇順、値はエンコード済みで k=v&k=v
// vnp_SecureHash / vnp_SecureHashType は除外する
func SignData(params map[string]string) string {
	keys := make([]string, 0, len(params))
	encoded := make(map[string]string, len(params))
	for k, v := range params {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		ek := encode(k)
		keys = append(keys, ek)
		encoded[ek] = encode(v)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(encoded[k])
	}
	return b.String()
}

// HMAC-SHA512 のhex
func Sign(params map[string]string, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(SignData(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// params内の vnp_SecureHash と再計算した値を比較する
func Verify(params map[string]string, secret string) bool {
	received := strings.ToLower(strings.TrimSpace(params[ParamSecureHash]))
	if received == "" {
		return false
	}
	expected := Sign(params, secret)
	return hmac.Equal([]byte(expected), []byte(received))
}

// 署名付きの支払いURL
func BuildURL(baseURL string, params map[string]string, secret string) string {
	data := SignData(params)
	hash := Sign(params, secret)
	return baseURL + "?" + data + "&" + ParamSecureHash + "=" + hash
}

// url.Values（同一キーは先頭だけ）を署名用のmapにする
func FromValues(q url.Values) map[string]string {
	out := make(map[string]string, len(q))
	for k, vs := range q {
		if len(vs) == 0 {
			continue
		}
		out[k] = vs[0]
	}
	return out
}

// yyyyMMddHHmmss（locの壁時計）
func FormatTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(timeLayout)
}

// 取れなければ ICT(+07:00) 固定
func LoadLocation(name string) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone("ICT", 7*3600)
}

// {orderId}-{yyyyMMddHHmmss}
func TxnRef(orderID string, now time.Time, loc *time.Location) string {
	return orderID + "-" + FormatTime(now, loc)
}

// vnp_IpAddr はIPv4のみ受け付けられる
func NormalizeIP(raw string) string {
	first := strings.TrimSpace(strings.Split(raw, ",")[0])
	if first == "" || first == "::1" {
		return "127.0.0.1"
	}
	if strings.HasPrefix(first, "::ffff:") {
		return strings.TrimPrefix(first, "::ffff:")
	}
	if host, _, err := net.SplitHostPort(first); err == nil {
		first = host
	}
	ip := net.ParseIP(first)
	if ip == nil {
		return "127.0.0.1"
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return "127.0.0.1"
}
