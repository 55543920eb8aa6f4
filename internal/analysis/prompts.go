package analysis

import "fmt"

// UnknownChannel is the model's answer when the mail names no channel.
const UnknownChannel = "UNKNOWN"

const extractionPromptTemplate = `다음 이메일 본문에서 IVR 채널 번호(숫자 4자리)를 찾아줘.
만약 채널 번호가 보인다면 숫자만 딱 적어서 대답해주고, 없으면 '%s'으로 대답해줘.
이메일 본문: "%s"`

const analysisPromptTemplate = `[메일 요약]: %s
[추출된 채널로그]: %s
[채널번호]: %s

위의 데이터와 첨부된 로그 이미지를 대조하여 다음을 분석해줘:
1. 현재 발생한 주요 에러나 특이사항이 무엇인가?
2. 로그상에서 흐름이 끊기거나 비정상 종료된 지점은 어디인가?
3. 해결을 위해 어떤 조치가 필요한가?`

// ExtractionPrompt asks the model for the channel number mentioned in mail.
func ExtractionPrompt(mail string) string {
	return fmt.Sprintf(extractionPromptTemplate, UnknownChannel, mail)
}

// AnalysisPrompt asks for the diagnosis, given the mail, the (possibly
// filtered) log and the extracted channel.
func AnalysisPrompt(mail, channelLog, channel string) string {
	return fmt.Sprintf(analysisPromptTemplate, mail, channelLog, channel)
}
