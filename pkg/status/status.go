// Package status maps SIASN numeric usulan status codes to display labels.
package status

// labels is the SIASN status_usulan vocabulary. Codes are string-encoded
// upstream; gaps in the sequence (54, 77-98) are real gaps in the source system.
var labels = map[string]string{
	"1":  "Input Berkas",
	"2":  "Berkas Disimpan (Terverifikasi)",
	"3":  "Surat Usulan",
	"4":  "Approval Surat Usulan",
	"5":  "Perbaikan Dokumen",
	"6":  "Tidak Memenuhi Syarat",
	"7":  "Menunggu Cetak SK – Menyetujui",
	"8":  "Menunggu Cetak SK – Perbaikan Pertek",
	"9":  "Menunggu Cetak SK – Pembatalan Pertek",
	"10": "Cetak SK",
	"11": "Profil PNS telah diperbaharui",
	"12": "Terima Usulan",
	"13": "Validasi Usulan – Tidak Memenuhi Syarat",
	"14": "Validasi Usulan – Perbaikan Dokumen",
	"15": "Validasi Usulan – Disetujui",
	"16": "Berkas Disetujui",
	"17": "Menunggu Paraf – Paraf Pertek",
	"18": "Menunggu Paraf – Gagal Paraf Pertek",
	"19": "Sdh di paraf - Pertek",
	"20": "Menunggu Tanda tangan- TTD Pertek",
	"21": "Berkas Ditolak - TTD Pertek",
	"22": "Sdh di TTD - Pertek",
	"23": "Surat Keluar",
	"24": "Perbaikan Pertek (Menunggu Approval Instansi)",
	"25": "Terima Usulan Penetapan – Pembatalan",
	"26": "Pembatalan Pertek (Menunggu Approval Instansi)",
	"27": "Menunggu SK – Paraf / TTE",
	"28": "Setuju Paraf SK",
	"29": "Tolak TTD SK",
	"30": "Setuju TTD SK",
	"31": "Telah Update di Profile PNS",
	"32": "Pembuatan SK Berhasil",
	"33": "Menunggu Layanan",
	"34": "Perbaikan Dokumen - Menunggu Approval",
	"35": "Tolak Paraf SK",
	"36": "Menunggu TTD - SK",
	"37": "Approval Perbaikan Pertek",
	"38": "Approval Pembatalan Pertek",
	"39": "Perbaikan SK",
	"40": "Berkas Disimpan (Terverifikasi) - Perbaikan SK",
	"41": "Validasi Usulan - Perbaikan SK",
	"42": "Validasi Usulan - Perbaikan SK (Disetujui)",
	"43": "Menunggu Paraf - Perbaikan SK",
	"44": "Menunggu TTD - Perbaikan SK",
	"45": "Sudah TTD - Perbaikan SK",
	"46": "Menunggu TTD SK - Instansi",
	"47": "Tolak TTD SK - Instansi",
	"48": "Setuju TTD SK - Instansi",
	"49": "Sudah TTD - SK",
	"50": "Perbaikan Dokumen - MYSAPK",
	"51": "Input Berkas - Perbaikan MySAPK ",
	"52": "Perbaikan Dokumen - Approval",
	"53": "Setuju TTD Pertek",
	"55": "Approval Tingkat Provinsi",
	"56": "Perbaikan Approval",
	"57": "Perbaikan Pertek",
	"58": "Validasi Usulan - Perbaikan Pertek",
	"59": "Menunggu Buat Sk",
	"60": "Proses Persidangan",
	"61": "Input Berkas - SK PNS",
	"62": "Menunggu TTD SK PNS - Instansi",
	"63": "Setuju TTD Digital SK PNS",
	"64": "Pembuatan SK Basah PNS Berhasil",
	"65": "Pembatalan NIP/Pertek",
	"66": "Perbaikan SK Provinsi",
	"67": "Validasi Perbaikan Dokumen - BTS",
	"68": "Validasi Perbaikan SK - BTS",
	"69": "Perbaikan Dokumen SK - BTS",
	"70": "Tolak Perbaikan SK - TMS",
	"71": "Validasi Perbaikan Dokumen SK - BTS",
	"72": "Perbaikan Dokumen Pertek - BTS",
	"73": "Tolak Perbaikan Pertek - TMS",
	"74": "Validasi Perbaikan Pertek - BTS",
	"75": "Pembatalan PERTEK",
	"76": "Menunggu Rekom OTDA",
	"99": "Usulan Dihapus",
}

// Label resolves a status code to its display label. Unknown codes fall back
// to the raw code string so rows never lose information.
func Label(code string) string {
	if label, ok := labels[code]; ok {
		return label
	}
	return code
}

// Known reports whether the code is part of the vocabulary.
func Known(code string) bool {
	_, ok := labels[code]
	return ok
}
